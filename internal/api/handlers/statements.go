package handlers

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ametsa/bachat-core/internal/api/middleware"
	"github.com/ametsa/bachat-core/internal/docstore"
	"github.com/ametsa/bachat-core/internal/domain"
	"github.com/ametsa/bachat-core/internal/jobs"
)

// maxStatementBytes caps uploaded statement documents at 20 MiB.
const maxStatementBytes = 20 << 20

// StatementsHandler serves statement upload and listing endpoints.
type StatementsHandler struct {
	statements StatementStore
	docs       DocumentSaver
	publisher  jobs.Publisher
	log        zerolog.Logger
}

func NewStatementsHandler(statements StatementStore, docs DocumentSaver, publisher jobs.Publisher, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{statements: statements, docs: docs, publisher: publisher, log: log}
}

// Upload handles POST /api/statements: a multipart form with the document
// under "file" plus profile_id, account_id and an optional bank_code. The
// document is stored, a statement record created, and a parse job enqueued.
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxStatementBytes)
	if err := r.ParseMultipartForm(maxStatementBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	profileID := r.FormValue("profile_id")
	accountID := r.FormValue("account_id")
	if profileID == "" || accountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "profile_id and account_id are required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	statementID := uuid.NewString()
	filename := filepath.Base(header.Filename)
	objectPath := docstore.ObjectPath(profileID, statementID, filename)

	gcsURI, err := h.docs.Save(ctx, objectPath, file)
	if err != nil {
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("store document")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	st := &domain.Statement{
		ID:            statementID,
		ProfileID:     profileID,
		BankAccountID: accountID,
		Filename:      filename,
		GCSPath:       gcsURI,
		BankCode:      r.FormValue("bank_code"),
		Status:        domain.StatementUploaded,
		UploadedAt:    time.Now().UTC(),
	}
	if err := h.statements.InsertStatement(ctx, st); err != nil {
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("save statement record")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to save statement")
		return
	}

	job := jobs.NewParseStatementJob(statementID, gcsURI)
	if err := h.publisher.Publish(ctx, job); err != nil {
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("enqueue parse")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to enqueue parsing")
		return
	}

	h.log.Info().
		Str("statement_id", statementID).
		Str("job_id", job.JobID).
		Str("gcs_uri", gcsURI).
		Msg("statement uploaded")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"statement_id": statementID,
		"job_id":       job.JobID,
		"gcs_uri":      gcsURI,
		"status":       string(st.Status),
	})
}

// List handles GET /api/statements?profile_id=.
func (h *StatementsHandler) List(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profile_id")
	if profileID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "profile_id is required")
		return
	}

	statements, err := h.statements.ListStatementsByProfileID(r.Context(), profileID)
	if err != nil {
		h.log.Error().Err(err).Str("profile_id", profileID).Msg("list statements")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list statements")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"statements": statements,
		"count":      len(statements),
	})
}

// Get handles GET /api/statements/{id}.
func (h *StatementsHandler) Get(w http.ResponseWriter, r *http.Request, statementID string) {
	st, err := h.statements.GetStatement(r.Context(), statementID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "statement not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}
