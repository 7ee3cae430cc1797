/**
 * @description
 * HTTP handlers for the subscription tracker API.
 */
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MajXin/Subscription-management-sys/internal/app"
	"github.com/MajXin/Subscription-management-sys/internal/domain"
	"github.com/MajXin/Subscription-management-sys/internal/store"
	"github.com/MajXin/Subscription-management-sys/internal/validation"
)

const maxRequestBodyBytes = 1 << 20

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service            app.Service
	defaultWindowDays  int
	reminderWindowDays int
}

// NewHandler creates a new Handler with the given service and projection windows.
func NewHandler(service app.Service, defaultWindowDays, reminderWindowDays int) *Handler {
	return &Handler{
		service:            service,
		defaultWindowDays:  defaultWindowDays,
		reminderWindowDays: reminderWindowDays,
	}
}

type envelope struct {
	Success bool                    `json:"success"`
	Data    interface{}             `json:"data,omitempty"`
	Message string                  `json:"message,omitempty"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
}

func (h *Handler) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req domain.CreateSubscriptionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	sub, err := h.service.Create(r.Context(), subject, req)
	if err != nil {
		h.handleServiceError(w, "creating subscription", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, envelope{Success: true, Data: sub})
}

func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	sub, err := h.service.Get(r.Context(), subject, id)
	if err != nil {
		h.handleServiceError(w, "fetching subscription "+id, err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: sub})
}

func (h *Handler) handleListUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	userID, ok := uuidParam(w, r, "userID")
	if !ok {
		return
	}

	subs, err := h.service.ListForUser(r.Context(), subject, userID)
	if err != nil {
		h.handleServiceError(w, "listing subscriptions for user "+userID, err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: nonNil(subs)})
}

func (h *Handler) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.UpdateSubscriptionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	sub, err := h.service.Update(r.Context(), subject, id, req)
	if err != nil {
		h.handleServiceError(w, "updating subscription "+id, err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: sub})
}

func (h *Handler) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), subject, id); err != nil {
		h.handleServiceError(w, "deleting subscription "+id, err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Message: "Subscription deleted successfully"})
}

func (h *Handler) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	sub, err := h.service.Cancel(r.Context(), subject, id)
	if err != nil {
		h.handleServiceError(w, "cancelling subscription "+id, err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Message: "Subscription cancelled successfully", Data: sub})
}

func (h *Handler) handleListUpcomingRenewals(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	days, ok := h.windowDays(w, r, h.defaultWindowDays)
	if !ok {
		return
	}

	upcoming, err := h.service.ListUpcoming(r.Context(), subject, days)
	if err != nil {
		h.handleServiceError(w, "listing upcoming renewals", err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: nonNil(upcoming)})
}

func (h *Handler) handleListAllSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.ListAll(r.Context())
	if err != nil {
		h.handleServiceError(w, "listing all subscriptions", err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: nonNil(subs)})
}

func (h *Handler) handleListAllUpcomingRenewals(w http.ResponseWriter, r *http.Request) {
	days, ok := h.windowDays(w, r, h.defaultWindowDays)
	if !ok {
		return
	}

	upcoming, err := h.service.ListUpcomingAll(r.Context(), days)
	if err != nil {
		h.handleServiceError(w, "listing all upcoming renewals", err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: nonNil(upcoming)})
}

func (h *Handler) handleRunReminders(w http.ResponseWriter, r *http.Request) {
	days, ok := h.windowDays(w, r, h.reminderWindowDays)
	if !ok {
		return
	}

	result, err := h.service.RunRenewalReminders(r.Context(), days)
	if err != nil {
		h.handleServiceError(w, "running renewal reminders", err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: result})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.handleServiceError(w, "listing users", err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: nonNil(users)})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, "fetching user "+id, err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: user})
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.handleServiceError(w, "deleting user "+id, err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Message: "User deleted successfully"})
}

// windowDays reads the optional days query parameter.
func (h *Handler) windowDays(w http.ResponseWriter, r *http.Request, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("days"))
	if raw == "" {
		return fallback, true
	}

	days, err := strconv.Atoi(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "days must be an integer")
		return 0, false
	}
	return days, true
}

// handleServiceError maps service errors onto HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, action string, err error) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, http.StatusBadRequest, envelope{Success: false, Message: verr.Error(), Errors: verr.Fields})
	case errors.Is(err, domain.ErrInvalidFrequency), errors.Is(err, domain.ErrInvalidDateOrder):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrForbidden):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrSubscriptionNotFound):
		respondWithError(w, http.StatusNotFound, "Subscription not found")
	case errors.Is(err, store.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, "User not found")
	default:
		log.Printf("Error %s: %v", action, err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid "+name)
		return "", false
	}
	return id.String(), true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// respondWithError writes an error envelope.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, envelope{Success: false, Message: message})
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
