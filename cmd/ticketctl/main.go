// ticketctl drives the ticket API from a terminal: buy tickets and wait for
// the payment, claim a ticket with an invoice paid elsewhere, or check a
// ticket in at the door.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/reconcile"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/client"
	pkgLog "github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

const usage = `usage: ticketctl <command> [flags]

commands:
  buy       --event ID --qty N [--email E] [--seats A1,A2]
                                             buy tickets and wait for payment
  claim     --event ID --invoice LNBC...     claim one ticket with a paid invoice
  checkin   --event ID --ticket ID           check a ticket in
  verify    --event ID --ticket ID           check a ticket is paid without admitting it
  status    --event ID --hash HASH           show the payment state of a purchase
  analytics --event ID                       show sales and check-in figures
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Print(usage)
		return nil
	}
	cmd, args := args[0], args[1:]

	var (
		baseURL  string
		eventID  string
		qty      int64
		email    string
		seats    []string
		invoice  string
		ticketID string
		hash     string
		interval time.Duration
		timeout  time.Duration
		logLevel string
	)

	fs := pflag.NewFlagSet("ticketctl "+cmd, pflag.ContinueOnError)
	fs.StringVar(&baseURL, "api", envOr("TICKET_API_URL", "http://localhost:8080"), "ticket API base URL")
	fs.StringVar(&eventID, "event", "", "event ID")
	fs.Int64Var(&qty, "qty", 1, "number of tickets to buy")
	fs.StringVar(&email, "email", "", "owner email for bought tickets")
	fs.StringSliceVar(&seats, "seats", nil, "seat numbers for bought tickets, in order")
	fs.StringVar(&invoice, "invoice", "", "BOLT11 payment request to claim with")
	fs.StringVar(&ticketID, "ticket", "", "ticket ID")
	fs.StringVar(&hash, "hash", "", "payment hash of a purchase")
	fs.DurationVar(&interval, "interval", 0, "poll interval (default 5s for buy, 3s for claim)")
	fs.DurationVar(&timeout, "timeout", 30*time.Minute, "give up waiting after this long")
	fs.StringVar(&logLevel, "log-level", "warn", "log level")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if eventID == "" {
		return errors.New("--event is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{Level: logLevel, Mode: "development", Encoding: "console"})
	cli := client.New(client.Config{BaseURL: baseURL})

	switch cmd {
	case "buy":
		p, err := cli.Purchase(ctx, eventID, client.PurchaseRequest{Quantity: qty, OwnerEmail: email, SeatNumbers: seats})
		if err != nil {
			return err
		}
		fmt.Printf("Pay %d sats (%s BTC) to:\n\n  %s\n\nwaiting for payment...\n",
			p.TotalSats, p.TotalBTC, p.Invoice.PaymentRequest)

		pc, err := reconcile.NewPaymentPoller(cli, interval, l).Wait(ctx, eventID, p.Invoice.PaymentHash)
		if err != nil {
			return err
		}
		fmt.Printf("paid: %d tickets confirmed\n", pc.UpdatedCount)
		return printJSON(p.Tickets)

	case "claim":
		if invoice == "" {
			return errors.New("--invoice is required")
		}
		res, err := reconcile.NewClaimPoller(cli, interval, l).Claim(ctx, eventID, invoice)
		if errors.Is(err, reconcile.ErrInvoiceCanceled) {
			return errors.New("invoice was canceled and can never be paid")
		}
		if err != nil {
			return err
		}
		if res.AlreadyClaimed {
			fmt.Println("invoice was already claimed")
		}
		return printJSON(res.Ticket)

	case "checkin":
		if ticketID == "" {
			return errors.New("--ticket is required")
		}
		t, err := cli.CheckIn(ctx, eventID, ticketID)
		if err != nil {
			return err
		}
		return printJSON(t)

	case "verify":
		if ticketID == "" {
			return errors.New("--ticket is required")
		}
		v, err := cli.VerifyTicket(ctx, eventID, ticketID)
		if err != nil {
			return err
		}
		return printJSON(v)

	case "analytics":
		a, err := cli.EventAnalytics(ctx, eventID)
		if err != nil {
			return err
		}
		return printJSON(a)

	case "status":
		if hash == "" {
			return errors.New("--hash is required")
		}
		pc, err := cli.CheckPaymentStatus(ctx, eventID, hash)
		if err != nil {
			return err
		}
		return printJSON(pc)

	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
