package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
)

// DefaultStreamKeepAlive is how often an idle payment stream sends an SSE
// comment so proxies keep the connection open.
const DefaultStreamKeepAlive = 15 * time.Second

// StreamPaymentStatus pushes payment state changes as server-sent events
// until the payment is paid or expired or the client goes away. The server
// write timeout does not apply to the stream.
func (h *HTTPHandler) StreamPaymentStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		h.respondError(w, r, fmt.Errorf("streaming unsupported by %T", w))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	eventID := chi.URLParam(r, "eventID")
	hash := chi.URLParam(r, "hash")

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.l.Warnf(ctx, "http.HTTPHandler.StreamPaymentStatus: %v", err)
	}

	upds := make(chan *models.PaymentUpdate)
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.tktSvc.StreamPaymentStatus(ctx, eventID, hash, upds)
	}()

	keepAlive := time.NewTicker(h.streamKeepAlive)
	defer keepAlive.Stop()

	started := false
	for {
		select {
		case u := <-upds:
			if !started {
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("Cache-Control", "no-cache")
				w.Header().Set("Connection", "keep-alive")
				w.WriteHeader(http.StatusOK)
				started = true
			}

			data, err := json.Marshal(u)
			if err != nil {
				h.l.Errorf(ctx, "http.HTTPHandler.StreamPaymentStatus: %v", err)
				continue
			}
			if err := writeEvent(w, rc, "event: %s\ndata: %s\n\n", u.Status, data); err != nil {
				h.l.Debugf(ctx, "http.HTTPHandler.StreamPaymentStatus: client gone: %v", err)
				return
			}

		case <-keepAlive.C:
			if !started {
				continue
			}
			if err := writeEvent(w, rc, ": keep-alive\n\n"); err != nil {
				h.l.Debugf(ctx, "http.HTTPHandler.StreamPaymentStatus: client gone: %v", err)
				return
			}

		case err := <-errCh:
			if err != nil && !started {
				h.respondError(w, r, err)
				return
			}
			if err != nil && r.Context().Err() == nil {
				h.l.Warnf(ctx, "http.HTTPHandler.StreamPaymentStatus: %v", err)
			}
			return
		}
	}
}

func writeEvent(w io.Writer, rc *http.ResponseController, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return err
	}
	return rc.Flush()
}
