package handlers

import (
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/ametsa/bachat-core/internal/api/middleware"
	"github.com/ametsa/bachat-core/internal/domain"
)

// TransactionsHandler serves ledger queries.
type TransactionsHandler struct {
	txns TransactionReader
	log  zerolog.Logger
}

func NewTransactionsHandler(txns TransactionReader, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{txns: txns, log: log}
}

// List handles GET /api/transactions?account_id=&start_date=&end_date=&limit=.
// Dates are YYYY-MM-DD; omitted bounds mean unbounded.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	accountID := query.Get("account_id")
	if accountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	var from, to civil.Date
	if s := query.Get("start_date"); s != "" {
		d, err := civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid start_date")
			return
		}
		from = d
	}
	if s := query.Get("end_date"); s != "" {
		d, err := civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid end_date")
			return
		}
		to = d
	}

	limit := 500
	if s := query.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	transactions, err := h.txns.ListTransactions(r.Context(), accountID, from, to, limit)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}
