package grpc

import (
	"fmt"
	"log"
	"os"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"

	"github.com/vogiaan1904/ticketbottle-lightning/config"
)

type cleanupFunc func()

// NewLndClient dials the node over TLS and attaches the macaroon to every call.
func NewLndClient(cfg config.LightningConfig) (lnrpc.LightningClient, cleanupFunc, error) {
	creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load lnd tls cert: %w", err)
	}

	macBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read lnd macaroon: %w", err)
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, nil, fmt.Errorf("failed to decode lnd macaroon: %w", err)
	}

	macCred, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build macaroon credential: %w", err)
	}

	maxMsgSize := 50 * 1024 * 1024
	if cfg.MaxRecvMsgSizeMiB > 0 {
		maxMsgSize = cfg.MaxRecvMsgSizeMiB * 1024 * 1024
	}
	conn, err := grpc.NewClient(cfg.Host,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macCred),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxMsgSize)),
	)
	if err != nil {
		log.Println("gRpc LND client connection failed.", err)
		return nil, nil, err
	}

	log.Println("gRpc LND client connection established.")
	return lnrpc.NewLightningClient(conn), func() { conn.Close() }, nil
}
