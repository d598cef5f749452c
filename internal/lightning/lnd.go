package lightning

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lntypes"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/metrics"
)

const (
	maxReconnectDelay = time.Minute
	settlementBuffer  = 64
)

type LndConfig struct {
	CallTimeout    time.Duration
	ReconnectDelay time.Duration
}

type lndOracle struct {
	cli lnrpc.LightningClient
	cfg LndConfig
	l   logger.Logger
	now func() time.Time
}

func NewLndOracle(cli lnrpc.LightningClient, cfg LndConfig, l logger.Logger) InvoiceOracle {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}

	return &lndOracle{
		cli: cli,
		cfg: cfg,
		l:   l,
		now: time.Now,
	}
}

func (o *lndOracle) CreateInvoice(ctx context.Context, amountSats int64, memo string, expiry time.Duration) (inv *models.Invoice, err error) {
	start := time.Now()
	defer func() { metrics.TrackOracle("AddInvoice", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	resp, err := o.cli.AddInvoice(ctx, &lnrpc.Invoice{
		Memo:   memo,
		Value:  amountSats,
		Expiry: int64(expiry.Seconds()),
	})
	if err != nil {
		o.l.Errorf(ctx, "lightning.lndOracle.CreateInvoice: %v", err)
		return nil, classifyErr(err)
	}

	now := o.now().UTC()
	return &models.Invoice{
		PaymentHash:    hex.EncodeToString(resp.RHash),
		PaymentRequest: resp.PaymentRequest,
		PaymentAddr:    hex.EncodeToString(resp.PaymentAddr),
		AmountSats:     amountSats,
		Memo:           memo,
		CreatedAt:      now,
		ExpiresAt:      now.Add(expiry),
	}, nil
}

func (o *lndOracle) LookupInvoiceStatus(ctx context.Context, paymentHash string) (lookup *models.InvoiceLookup, err error) {
	hash, err := lntypes.MakeHashFromStr(paymentHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPaymentHash, err)
	}

	start := time.Now()
	defer func() {
		if errors.Is(err, ErrInvoiceNotFound) {
			metrics.TrackOracle("LookupInvoice", start, nil)
			return
		}
		metrics.TrackOracle("LookupInvoice", start, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	inv, err := o.cli.LookupInvoice(ctx, &lnrpc.PaymentHash{RHash: hash[:]})
	if err != nil {
		err = classifyErr(err)
		if !errors.Is(err, ErrInvoiceNotFound) {
			o.l.Errorf(ctx, "lightning.lndOracle.LookupInvoiceStatus: %v", err)
		}
		return nil, err
	}

	return toLookup(hash.String(), inv), nil
}

func (o *lndOracle) SubscribeSettlements(ctx context.Context) (<-chan models.Settlement, error) {
	out := make(chan models.Settlement, settlementBuffer)

	go func() {
		defer close(out)

		var (
			lastIndex uint64
			delay     = o.cfg.ReconnectDelay
		)

		for {
			idx, err := o.consumeInvoices(ctx, lastIndex, out)
			if idx > lastIndex {
				lastIndex = idx
				delay = o.cfg.ReconnectDelay
			}

			if ctx.Err() != nil {
				return
			}

			o.l.Warnw(ctx, "Invoice subscription interrupted, reconnecting",
				"error", err,
				"settle_index", lastIndex,
				"delay", delay,
			)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
		}
	}()

	return out, nil
}

// consumeInvoices reads one subscription stream until it fails. Resuming
// from settleIndex makes the node replay every settlement after it.
func (o *lndOracle) consumeInvoices(ctx context.Context, settleIndex uint64, out chan<- models.Settlement) (uint64, error) {
	stream, err := o.cli.SubscribeInvoices(ctx, &lnrpc.InvoiceSubscription{SettleIndex: settleIndex})
	if err != nil {
		return settleIndex, classifyErr(err)
	}

	o.l.Infow(ctx, "Subscribed to invoice updates", "settle_index", settleIndex)

	for {
		inv, err := stream.Recv()
		if err != nil {
			return settleIndex, classifyErr(err)
		}

		if inv.State != lnrpc.Invoice_SETTLED {
			continue
		}

		st := models.Settlement{
			PaymentHash:    hex.EncodeToString(inv.RHash),
			AmountPaidSats: inv.AmtPaidSat,
			SettledAt:      time.Unix(inv.SettleDate, 0).UTC(),
			SettleIndex:    inv.SettleIndex,
		}

		select {
		case out <- st:
		case <-ctx.Done():
			return settleIndex, ctx.Err()
		}

		if inv.SettleIndex > settleIndex {
			settleIndex = inv.SettleIndex
		}
	}
}

func toLookup(hash string, inv *lnrpc.Invoice) *models.InvoiceLookup {
	lookup := &models.InvoiceLookup{
		PaymentHash:    hash,
		State:          toState(inv.State),
		AmountPaidSats: inv.AmtPaidSat,
	}

	if lookup.State == models.InvoiceStateSettled {
		lookup.Settled = true
		if inv.SettleDate > 0 {
			at := time.Unix(inv.SettleDate, 0).UTC()
			lookup.SettledAt = &at
		}
	}

	return lookup
}

func toState(s lnrpc.Invoice_InvoiceState) models.InvoiceState {
	switch s {
	case lnrpc.Invoice_SETTLED:
		return models.InvoiceStateSettled
	case lnrpc.Invoice_CANCELED:
		return models.InvoiceStateCanceled
	case lnrpc.Invoice_ACCEPTED:
		return models.InvoiceStateAccepted
	default:
		return models.InvoiceStateOpen
	}
}

// classifyErr maps node errors onto the adapter's error set. Anything that
// is not a missing invoice means the node could not answer.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}

	if st, ok := status.FromError(err); ok {
		if st.Code() == codes.NotFound || strings.Contains(st.Message(), "unable to locate invoice") {
			return fmt.Errorf("%w: %s", ErrInvoiceNotFound, st.Message())
		}
	}

	return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
}
