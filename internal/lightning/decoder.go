package lightning

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/zpay32"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
)

// Decoder turns a BOLT11 payment request into the fields a client needs to
// poll for payment.
type Decoder interface {
	Decode(paymentRequest string) (*models.DecodedInvoice, error)
}

type zpayDecoder struct {
	network string
	params  *chaincfg.Params
}

func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network: %q", network)
	}
}

func NewDecoder(network string) (Decoder, error) {
	params, err := NetworkParams(network)
	if err != nil {
		return nil, err
	}

	return &zpayDecoder{
		network: network,
		params:  params,
	}, nil
}

func (d *zpayDecoder) Decode(paymentRequest string) (*models.DecodedInvoice, error) {
	payReq := strings.TrimPrefix(strings.TrimSpace(paymentRequest), "lightning:")
	if payReq == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPaymentRequest)
	}

	inv, err := zpay32.Decode(payReq, d.params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPaymentRequest, err)
	}

	if inv.PaymentHash == nil {
		return nil, fmt.Errorf("%w: missing payment hash", ErrInvalidPaymentRequest)
	}

	out := &models.DecodedInvoice{
		PaymentHash: lntypes.Hash(*inv.PaymentHash).String(),
		Network:     d.network,
		CreatedAt:   inv.Timestamp.UTC(),
		ExpiresAt:   inv.Timestamp.Add(inv.Expiry()).UTC(),
	}

	if inv.MilliSat != nil {
		out.AmountSats = int64(*inv.MilliSat) / 1000
	}
	if inv.Description != nil {
		out.Memo = *inv.Description
	}

	return out, nil
}
