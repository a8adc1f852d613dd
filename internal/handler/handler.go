package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Dan9191/rent-service/internal/export"
	"github.com/Dan9191/rent-service/internal/increment"
	"github.com/Dan9191/rent-service/internal/models"
	"github.com/Dan9191/rent-service/internal/repository"
	"github.com/Dan9191/rent-service/internal/service"
	"github.com/Dan9191/rent-service/internal/timeutil"
	"github.com/Dan9191/rent-service/internal/validator"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// CustomerService is the part of service.Service the HTTP layer needs
type CustomerService interface {
	Login(username, password string) (string, error)
	CreateCustomer(ctx context.Context, in *models.CustomerInput) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
	SearchCustomers(ctx context.Context, query string) ([]*models.Customer, error)
	UpdateCustomer(ctx context.Context, id string, in *models.CustomerInput) (*models.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	EvaluateCustomer(ctx context.Context, id string, now time.Time) (*models.Customer, *models.IncrementView, error)
	AlertReport(ctx context.Context, now time.Time) (*models.AlertReport, error)
	ApplyIncrement(ctx context.Context, id string, now time.Time) (*models.Customer, error)
	Now() time.Time
}

type Handler struct {
	svc CustomerService
	log *logrus.Logger
}

func NewHandler(svc CustomerService, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes registers the protected customer routes on r.
// Fixed paths go first so they are not captured by {id}.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/customers", h.ListCustomers).Methods(http.MethodGet)
	r.HandleFunc("/customers", h.CreateCustomer).Methods(http.MethodPost)
	r.HandleFunc("/customers/search", h.SearchCustomers).Methods(http.MethodGet)
	r.HandleFunc("/customers/alerts", h.Alerts).Methods(http.MethodGet)
	r.HandleFunc("/customers/export.xml", h.ExportRentRoll).Methods(http.MethodGet)
	r.HandleFunc("/customers/{id}", h.GetCustomer).Methods(http.MethodGet)
	r.HandleFunc("/customers/{id}", h.UpdateCustomer).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/customers/{id}", h.DeleteCustomer).Methods(http.MethodDelete)
	r.HandleFunc("/customers/{id}/apply-increment", h.ApplyIncrement).Methods(http.MethodPost)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles operator authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	token, err := h.svc.Login(req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.svc.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// SearchCustomers matches the q parameter against customer names
func (h *Handler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.svc.SearchCustomers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var in models.CustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	customer, err := h.svc.CreateCustomer(r.Context(), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

type customerDetail struct {
	Customer       *models.Customer      `json:"customer"`
	Increment      *models.IncrementView `json:"increment"`
	IncrementError string                `json:"incrementError,omitempty"`
}

// GetCustomer returns a customer with its increment state. A record the
// engine rejects is still returned, with the reason in incrementError.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, view, err := h.svc.EvaluateCustomer(r.Context(), mux.Vars(r)["id"], h.svc.Now())
	var invalid *increment.InvalidRecordError
	switch {
	case errors.As(err, &invalid) && customer != nil:
		writeJSON(w, http.StatusOK, customerDetail{Customer: customer, IncrementError: invalid.Error()})
	case err != nil:
		h.fail(w, r, err)
	default:
		writeJSON(w, http.StatusOK, customerDetail{Customer: customer, Increment: view})
	}
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var in models.CustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	customer, err := h.svc.UpdateCustomer(r.Context(), mux.Vars(r)["id"], &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCustomer(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Customer deleted successfully"})
}

// Alerts returns every customer evaluated now, most urgent first
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.AlertReport(r.Context(), h.svc.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ApplyIncrement commits the overdue increment of one customer
func (h *Handler) ApplyIncrement(w http.ResponseWriter, r *http.Request) {
	customer, err := h.svc.ApplyIncrement(r.Context(), mux.Vars(r)["id"], h.svc.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

// ExportRentRoll downloads the alert report as XML
func (h *Handler) ExportRentRoll(w http.ResponseWriter, r *http.Request) {
	now := h.svc.Now()
	report, err := h.svc.AlertReport(r.Context(), now)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteRentRoll(&buf, report); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="rent-roll-`+timeutil.FormatDate(now)+`.xml"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// fail maps service errors onto HTTP statuses
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validator.ValidationError
	var invalid *increment.InvalidRecordError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "Validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "Customer not found")
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "Customer was changed by another request, reload and retry")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, service.ErrIncrementNotDue):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusUnprocessableEntity, invalid.Error())
	default:
		h.log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Errorf("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
