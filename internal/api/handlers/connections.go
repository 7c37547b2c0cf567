package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/ametsa/bachat-core/internal/api/middleware"
	"github.com/ametsa/bachat-core/internal/domain"
	"github.com/ametsa/bachat-core/internal/jobs"
)

// ConnectionsHandler serves the aggregator connection endpoints.
type ConnectionsHandler struct {
	svc       SyncService
	accounts  AccountReader
	publisher jobs.Publisher
	log       zerolog.Logger
}

func NewConnectionsHandler(svc SyncService, accounts AccountReader, publisher jobs.Publisher, log zerolog.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{svc: svc, accounts: accounts, publisher: publisher, log: log}
}

// Initiate handles POST /api/connections. from_date/to_date narrow the
// consent's data range; omitted, the service applies its default window.
func (h *ConnectionsHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProfileID string `json:"profile_id"`
		Mobile    string `json:"mobile"`
		FromDate  string `json:"from_date"`
		ToDate    string `json:"to_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProfileID == "" || req.Mobile == "" {
		middleware.WriteError(w, http.StatusBadRequest, "profile_id and mobile are required")
		return
	}
	var from, to civil.Date
	var err error
	if req.FromDate != "" {
		if from, err = civil.ParseDate(req.FromDate); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid from_date, want YYYY-MM-DD")
			return
		}
	}
	if req.ToDate != "" {
		if to, err = civil.ParseDate(req.ToDate); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid to_date, want YYYY-MM-DD")
			return
		}
	}

	result, err := h.svc.InitiateConnection(r.Context(), req.ProfileID, req.Mobile, from, to)
	if err != nil {
		h.log.Error().Err(err).Str("profile_id", req.ProfileID).Msg("initiate connection")
		middleware.WriteError(w, http.StatusBadGateway, "failed to initiate connection")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"account_id":  result.Account.ID,
		"consent_id":  result.Account.ConsentID,
		"consent_url": result.ConsentURL,
		"status":      result.Account.ConsentStatus,
	})
}

// ListAccounts handles GET /api/accounts?profile_id=.
func (h *ConnectionsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profile_id")
	if profileID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "profile_id is required")
		return
	}

	accounts, err := h.accounts.ListAccountsByProfileID(r.Context(), profileID)
	if err != nil {
		h.log.Error().Err(err).Str("profile_id", profileID).Msg("list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// GetAccount handles GET /api/accounts/{id}.
func (h *ConnectionsHandler) GetAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	account, err := h.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "account not found")
		return
	}
	holders, err := h.accounts.ListHolders(r.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("list holders")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load account holders")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"holders": holders,
	})
}

// RefreshConsent handles POST /api/accounts/{id}/consent/refresh.
func (h *ConnectionsHandler) RefreshConsent(w http.ResponseWriter, r *http.Request, accountID string) {
	account, err := h.svc.RefreshConsentStatus(r.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("refresh consent")
		middleware.WriteError(w, http.StatusBadGateway, "failed to refresh consent status")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": account.ID,
		"status":     account.ConsentStatus,
	})
}

// EnqueueSync handles POST /api/accounts/{id}/sync. The sync itself runs on
// the worker; the caller gets a job handle back.
func (h *ConnectionsHandler) EnqueueSync(w http.ResponseWriter, r *http.Request, accountID string) {
	if _, err := h.accounts.GetAccount(r.Context(), accountID); err != nil {
		middleware.WriteError(w, http.StatusNotFound, "account not found")
		return
	}

	job := jobs.NewSyncAccountJob(accountID, domain.TriggerManual)
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("enqueue sync")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to enqueue sync")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("account_id", accountID).Msg("sync job enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"account_id": accountID,
		"status":     string(job.Status),
	})
}

// Disconnect handles DELETE /api/accounts/{id}.
func (h *ConnectionsHandler) Disconnect(w http.ResponseWriter, r *http.Request, accountID string) {
	if err := h.svc.Disconnect(r.Context(), accountID); err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("disconnect")
		middleware.WriteError(w, http.StatusBadGateway, "failed to disconnect account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"account_id": accountID,
		"status":     "disconnected",
	})
}

// History handles GET /api/accounts/{id}/history.
func (h *ConnectionsHandler) History(w http.ResponseWriter, r *http.Request, accountID string) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.svc.History(r.Context(), accountID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("sync history")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load sync history")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"history": records,
		"count":   len(records),
	})
}
