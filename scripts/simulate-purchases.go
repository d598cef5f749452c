package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/pkg/client"
	pkgErrors "github.com/vogiaan1904/ticketbottle-lightning/pkg/errors"
)

var (
	apiURL      = flag.String("api", "http://localhost:8080", "Ticket API base URL")
	eventID     = flag.String("event", "", "Event ID (creates a new event when empty)")
	capacity    = flag.Int64("capacity", 50, "Ticket count for a newly created event")
	price       = flag.Int64("price", 1000, "Ticket price in sats for a newly created event")
	buyers      = flag.Int("buyers", 200, "Number of concurrent buyers")
	qty         = flag.Int64("qty", 1, "Tickets per purchase")
	concurrency = flag.Int("concurrency", 50, "Maximum in-flight requests")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cli := client.New(client.Config{BaseURL: *apiURL})

	if *eventID == "" {
		ev, err := cli.CreateEvent(ctx, client.CreateEventRequest{
			Title:       "Simulated sale",
			Date:        time.Now().Add(7 * 24 * time.Hour),
			TicketPrice: *price,
			TicketCount: *capacity,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create event: %v\n", err)
			os.Exit(1)
		}
		*eventID = ev.ID
		fmt.Printf("Created event %s with %d tickets\n", ev.ID, ev.TicketCount)
	}

	var (
		accepted atomic.Int64
		rejected atomic.Int64
		failed   atomic.Int64
		wg       sync.WaitGroup
		sem      = make(chan struct{}, *concurrency)
	)

	start := time.Now()
	for i := 0; i < *buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			_, err := cli.Purchase(ctx, *eventID, client.PurchaseRequest{
				Quantity:   *qty,
				OwnerEmail: fmt.Sprintf("buyer%d@example.com", i),
			})

			var he *pkgErrors.HTTPError
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.As(err, &he) && he.Code == "TKT005":
				rejected.Add(1)
			default:
				failed.Add(1)
				fmt.Fprintf(os.Stderr, "buyer %d: %v\n", i, err)
			}
		}(i)
	}
	wg.Wait()

	ev, err := cli.GetEvent(ctx, *eventID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read event: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nFinished in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  accepted purchases: %d (%d tickets)\n", accepted.Load(), accepted.Load()**qty)
	fmt.Printf("  rejected (sold out): %d\n", rejected.Load())
	fmt.Printf("  failed:             %d\n", failed.Load())
	fmt.Printf("  event sold:         %d / %d\n", ev.TicketsSold, ev.TicketCount)

	if ev.TicketsSold > ev.TicketCount {
		fmt.Fprintln(os.Stderr, "OVERSOLD: tickets_sold exceeds ticket_count")
		os.Exit(1)
	}
}
