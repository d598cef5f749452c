package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/service"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/response"
)

const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	tktSvc    service.TicketService
	evtSvc    service.EventService
	l         logger.Logger
	validator *validator.Validate
	statuses  map[string]func() any

	streamKeepAlive time.Duration
}

func NewHTTPHandler(tktSvc service.TicketService, evtSvc service.EventService, l logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		tktSvc:    tktSvc,
		evtSvc:    evtSvc,
		l:         l,
		validator: validator.New(),
		statuses:  map[string]func() any{},

		streamKeepAlive: DefaultStreamKeepAlive,
	}
}

// RegisterStatus adds a background component to the health report.
func (h *HTTPHandler) RegisterStatus(name string, fn func() any) {
	h.statuses[name] = fn
}

// HealthCheck handles health check requests
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "healthy",
		"service": "ticket-service",
		"version": "1.0.0",
	}
	if len(h.statuses) > 0 {
		comps := make(map[string]any, len(h.statuses))
		for name, fn := range h.statuses {
			comps[name] = fn()
		}
		body["components"] = comps
	}

	h.respondJSON(w, http.StatusOK, body)
}

func (h *HTTPHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req service.CreateEventInput
	if !h.bind(w, r, &req) {
		return
	}

	ev, err := h.evtSvc.CreateEvent(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusCreated, ev)
}

func (h *HTTPHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := h.evtSvc.ListEvents(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, evs)
}

func (h *HTTPHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.evtSvc.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, ev)
}

func (h *HTTPHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.evtSvc.DeleteEvent(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) IssueBulkPurchase(w http.ResponseWriter, r *http.Request) {
	var req service.IssueBulkPurchaseInput
	if !h.bind(w, r, &req) {
		return
	}
	req.EventID = chi.URLParam(r, "eventID")

	p, err := h.tktSvc.IssueBulkPurchase(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusCreated, p)
}

func (h *HTTPHandler) CheckPaymentStatus(w http.ResponseWriter, r *http.Request) {
	pc, err := h.tktSvc.CheckPaymentStatus(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "hash"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, pc)
}

func (h *HTTPHandler) ConfirmBulkPayment(w http.ResponseWriter, r *http.Request) {
	pc, err := h.tktSvc.ConfirmBulkPayment(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "hash"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, pc)
}

type claimRequest struct {
	PaymentHash    string `json:"payment_hash" validate:"required_without=PaymentRequest"`
	PaymentRequest string `json:"payment_request"`
}

func (h *HTTPHandler) ClaimTicket(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !h.bind(w, r, &req) {
		return
	}
	eventID := chi.URLParam(r, "eventID")

	var (
		res *models.ClaimResult
		err error
	)
	if req.PaymentHash != "" {
		res, err = h.tktSvc.ClaimSingleTicket(r.Context(), eventID, req.PaymentHash)
	} else {
		res, err = h.tktSvc.ClaimWithPaymentRequest(r.Context(), eventID, req.PaymentRequest)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyClaimed {
		status = http.StatusOK
	}
	h.respondSuccess(w, status, res)
}

func (h *HTTPHandler) GetInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	lk, err := h.tktSvc.GetInvoiceStatus(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, lk)
}

type decodeRequest struct {
	PaymentRequest string `json:"payment_request" validate:"required"`
}

func (h *HTTPHandler) DecodeInvoice(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !h.bind(w, r, &req) {
		return
	}

	dec, err := h.tktSvc.DecodeInvoice(r.Context(), req.PaymentRequest)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, dec)
}

func (h *HTTPHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := service.ListTicketsInput{
		EventID:       chi.URLParam(r, "eventID"),
		Status:        models.TicketStatus(q.Get("status")),
		InvoiceStatus: models.InvoiceStatus(q.Get("invoice_status")),
		PaymentHash:   q.Get("payment_hash"),
	}
	if in.Status != "" && !in.Status.IsValid() {
		h.respondError(w, r, errInvalidRequest)
		return
	}

	tickets, err := h.tktSvc.ListTickets(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, tickets)
}

func (h *HTTPHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := h.tktSvc.GetTicket(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "ticketID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, t)
}

func (h *HTTPHandler) IssueTicketToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.tktSvc.IssueTicketToken(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "ticketID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, tok)
}

func (h *HTTPHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	t, err := h.tktSvc.CheckIn(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "ticketID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, t)
}

type verifyRequest struct {
	TicketID string `json:"ticket_id" validate:"required"`
}

func (h *HTTPHandler) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !h.bind(w, r, &req) {
		return
	}

	v, err := h.tktSvc.VerifyTicket(r.Context(), chi.URLParam(r, "eventID"), req.TicketID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, v)
}

func (h *HTTPHandler) EventAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.tktSvc.EventAnalytics(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, a)
}

type tokenCheckInRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *HTTPHandler) CheckInWithToken(w http.ResponseWriter, r *http.Request) {
	var req tokenCheckInRequest
	if !h.bind(w, r, &req) {
		return
	}

	t, err := h.tktSvc.CheckInWithToken(r.Context(), req.Token)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, t)
}

type bulkCheckInRequest struct {
	TicketIDs []string `json:"ticket_ids" validate:"required,min=1,max=500,dive,required"`
}

func (h *HTTPHandler) BulkCheckIn(w http.ResponseWriter, r *http.Request) {
	var req bulkCheckInRequest
	if !h.bind(w, r, &req) {
		return
	}

	out, err := h.tktSvc.BulkCheckIn(r.Context(), chi.URLParam(r, "eventID"), req.TicketIDs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, out)
}

type bulkTransferRequest struct {
	Items []service.TransferItem `json:"items" validate:"required,min=1,max=500,dive"`
}

func (h *HTTPHandler) BulkTransfer(w http.ResponseWriter, r *http.Request) {
	var req bulkTransferRequest
	if !h.bind(w, r, &req) {
		return
	}

	out, err := h.tktSvc.BulkTransfer(r.Context(), chi.URLParam(r, "eventID"), req.Items)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, out)
}

// Helper functions

// bind decodes and validates a JSON body. It writes the error response
// itself and reports whether the handler may continue.
func (h *HTTPHandler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		h.l.Debugw(r.Context(), "invalid request body", "error", err)
		_ = response.ValidationError(w, errInvalidRequest, []string{err.Error()})
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, strings.ToLower(fe.Field())+": "+fe.Tag())
			}
			_ = response.ValidationError(w, errInvalidRequest, details)
			return false
		}
		h.respondError(w, r, errInvalidRequest)
		return false
	}

	return true
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	if err := response.JSON(w, statusCode, data); err != nil {
		h.l.Errorf(context.Background(), "http.HTTPHandler.respondJSON: %v", err)
	}
}

func (h *HTTPHandler) respondSuccess(w http.ResponseWriter, statusCode int, data any) {
	if err := response.Success(w, statusCode, data); err != nil {
		h.l.Errorf(context.Background(), "http.HTTPHandler.respondSuccess: %v", err)
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	mapped, ok := mapHTTPError(err)
	if !ok {
		h.l.Errorf(r.Context(), "http.HTTPHandler: %v", err)
	} else {
		h.l.Debugw(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	if err := response.Error(w, mapped); err != nil {
		h.l.Errorf(r.Context(), "http.HTTPHandler.respondError: %v", err)
	}
}
