package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets created, by flow (bulk or claim)",
		},
		[]string{"flow"},
	)

	TicketsConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_payment_confirmed_total",
			Help: "Pending tickets moved to valid after their invoice settled",
		},
	)

	CheckIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_checkins_total",
			Help: "Check-in attempts by result",
		},
		[]string{"result"},
	)

	Transfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_transfers_total",
			Help: "Transfer attempts by result",
		},
		[]string{"result"},
	)

	TicketsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_expired_total",
			Help: "Stale pending tickets removed by the expiry sweep",
		},
	)

	CapacityRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capacity_rejections_total",
			Help: "Reservations rejected because the event was sold out",
		},
		[]string{"flow"},
	)

	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_requests_total",
			Help: "Calls to the Lightning node",
		},
		[]string{"method", "status"},
	)

	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_request_duration_seconds",
			Help:    "Latency of calls to the Lightning node",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	SettlementsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlements_received_total",
			Help: "Settlement notifications consumed from the node or the bus",
		},
	)
)

// TrackOracle records the outcome and latency of one Lightning node call.
func TrackOracle(method string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	OracleRequests.WithLabelValues(method, status).Inc()
	OracleDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func TrackCheckIn(err error) {
	if err != nil {
		CheckIns.WithLabelValues("rejected").Inc()
		return
	}
	CheckIns.WithLabelValues("success").Inc()
}

func TrackTransfer(err error) {
	if err != nil {
		Transfers.WithLabelValues("rejected").Inc()
		return
	}
	Transfers.WithLabelValues("success").Inc()
}
