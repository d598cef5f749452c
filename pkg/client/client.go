// Package client is a typed HTTP client for the ticket API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	pkgErrors "github.com/vogiaan1904/ticketbottle-lightning/pkg/errors"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/response"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	// baseURL is the API root, e.g. http://localhost:8080.
	baseURL string

	hc *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

type CreateEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	TicketPrice int64     `json:"ticket_price"`
	TicketCount int64     `json:"ticket_count"`
}

type PurchaseRequest struct {
	Quantity   int64  `json:"quantity"`
	OwnerEmail string `json:"owner_email,omitempty"`
	Category   string `json:"category,omitempty"`
	// SeatNumbers are assigned in ticket order.
	SeatNumbers []string `json:"seat_numbers,omitempty"`
}

func (c *Client) CreateEvent(ctx context.Context, req CreateEventRequest) (*models.Event, error) {
	var ev models.Event
	if err := c.do(ctx, http.MethodPost, "/api/v1/events", req, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *Client) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var ev models.Event
	if err := c.do(ctx, http.MethodGet, "/api/v1/events/"+url.PathEscape(eventID), nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *Client) Purchase(ctx context.Context, eventID string, req PurchaseRequest) (*models.Purchase, error) {
	var p models.Purchase
	if err := c.do(ctx, http.MethodPost, eventPath(eventID, "purchases"), req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CheckPaymentStatus(ctx context.Context, eventID, paymentHash string) (*models.PaymentCheck, error) {
	var pc models.PaymentCheck
	if err := c.do(ctx, http.MethodGet, eventPath(eventID, "payments", paymentHash), nil, &pc); err != nil {
		return nil, err
	}
	return &pc, nil
}

func (c *Client) ConfirmBulkPayment(ctx context.Context, eventID, paymentHash string) (*models.PaymentCheck, error) {
	var pc models.PaymentCheck
	if err := c.do(ctx, http.MethodPost, eventPath(eventID, "payments", paymentHash, "confirm"), nil, &pc); err != nil {
		return nil, err
	}
	return &pc, nil
}

func (c *Client) ClaimSingleTicket(ctx context.Context, eventID, paymentHash string) (*models.ClaimResult, error) {
	var res models.ClaimResult
	body := map[string]string{"payment_hash": paymentHash}
	if err := c.do(ctx, http.MethodPost, eventPath(eventID, "claims"), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetInvoiceStatus(ctx context.Context, paymentHash string) (*models.InvoiceLookup, error) {
	var lk models.InvoiceLookup
	if err := c.do(ctx, http.MethodGet, "/api/v1/invoices/"+url.PathEscape(paymentHash), nil, &lk); err != nil {
		return nil, err
	}
	return &lk, nil
}

func (c *Client) DecodeInvoice(ctx context.Context, paymentRequest string) (*models.DecodedInvoice, error) {
	var dec models.DecodedInvoice
	body := map[string]string{"payment_request": paymentRequest}
	if err := c.do(ctx, http.MethodPost, "/api/v1/invoices/decode", body, &dec); err != nil {
		return nil, err
	}
	return &dec, nil
}

func (c *Client) CheckIn(ctx context.Context, eventID, ticketID string) (*models.Ticket, error) {
	var t models.Ticket
	if err := c.do(ctx, http.MethodPost, eventPath(eventID, "tickets", ticketID, "checkin"), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) VerifyTicket(ctx context.Context, eventID, ticketID string) (*models.TicketVerification, error) {
	var v models.TicketVerification
	body := map[string]string{"ticket_id": ticketID}
	if err := c.do(ctx, http.MethodPost, eventPath(eventID, "verify"), body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) EventAnalytics(ctx context.Context, eventID string) (*models.EventAnalytics, error) {
	var a models.EventAnalytics
	if err := c.do(ctx, http.MethodGet, eventPath(eventID, "analytics"), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) ListTickets(ctx context.Context, eventID string, status models.TicketStatus) ([]*models.Ticket, error) {
	p := eventPath(eventID, "tickets")
	if status != "" {
		p += "?status=" + url.QueryEscape(string(status))
	}

	var tickets []*models.Ticket
	if err := c.do(ctx, http.MethodGet, p, nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func eventPath(eventID string, parts ...string) string {
	segs := []string{"/api/v1/events", url.PathEscape(eventID)}
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return strings.Join(segs, "/")
}

// do sends one request and decodes the data envelope into out. Non-2xx
// responses come back as *errors.HTTPError carrying the API error code.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	var env struct {
		response.Resp
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("client: decode response (status %d): %w", res.StatusCode, err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		return pkgErrors.NewHTTPError(env.ErrorCode, env.Message, res.StatusCode)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("client: decode data: %w", err)
		}
	}
	return nil
}
