// Package pipeline turns an uploaded statement document into ledger rows:
// fetch the document, extract its text, detect the issuing bank, parse every
// page in order, categorize, and insert behind the dedupe gate.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ametsa/bachat-core/internal/categorize"
	"github.com/ametsa/bachat-core/internal/domain"
	"github.com/ametsa/bachat-core/internal/statement"
)

// Step is a single stage of the ingestion pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State is the shared state threaded through the pipeline steps.
type State struct {
	Statement    *domain.Statement
	Text         string
	Pages        []string
	Result       statement.ParseResult
	Transactions []*domain.Transaction
	Saved        int
	Skipped      int
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, stopping on the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i+1, err)
		}
	}
	return nil
}

// Ingestor wires the pipeline's dependencies.
type Ingestor struct {
	statements  StatementStore
	txns        TransactionSink
	docs        DocumentFetcher
	extractor   TextExtractor
	registry    *statement.Registry
	categorizer categorize.Categorizer
	log         zerolog.Logger
	now         func() time.Time
}

func NewIngestor(
	statements StatementStore,
	txns TransactionSink,
	docs DocumentFetcher,
	extractor TextExtractor,
	registry *statement.Registry,
	categorizer categorize.Categorizer,
	log zerolog.Logger,
) *Ingestor {
	return &Ingestor{
		statements:  statements,
		txns:        txns,
		docs:        docs,
		extractor:   extractor,
		registry:    registry,
		categorizer: categorizer,
		log:         log.With().Str("component", "pipeline").Logger(),
		now:         time.Now,
	}
}

// IngestStatementFromGCS runs the full pipeline for one uploaded statement.
// Re-running over the same document is safe: every row it parsed before is
// skipped by the dedupe gate.
func (ing *Ingestor) IngestStatementFromGCS(ctx context.Context, statementID string) error {
	st, err := ing.statements.GetStatement(ctx, statementID)
	if err != nil {
		return fmt.Errorf("IngestStatementFromGCS: %w", err)
	}
	if st.BankAccountID == "" {
		return fmt.Errorf("IngestStatementFromGCS: statement %s not linked to an account", statementID)
	}

	st.Status = domain.StatementParsing
	st.ErrorMessage = ""
	if err := ing.statements.UpdateStatement(ctx, st); err != nil {
		return fmt.Errorf("IngestStatementFromGCS: %w", err)
	}

	state := &State{Statement: st}
	pipe := NewPipeline(
		&FetchDocumentStep{ing: ing},
		&ExtractTextStep{ing: ing},
		&ParsePagesStep{ing: ing},
		&CategorizeStep{ing: ing},
		&SaveTransactionsStep{ing: ing},
	)

	if err := pipe.Execute(ctx, state); err != nil {
		st.Status = domain.StatementFailed
		st.ErrorMessage = err.Error()
		st.ParsedAt = ing.now()
		if uerr := ing.statements.UpdateStatement(ctx, st); uerr != nil {
			ing.log.Error().Err(uerr).Str("statement_id", st.ID).Msg("recording parse failure")
		}
		return fmt.Errorf("IngestStatementFromGCS: %w", err)
	}

	st.Status = domain.StatementParsed
	st.BankCode = state.Result.BankCode
	st.TxnsParsed = len(state.Result.Transactions)
	st.TxnsSaved = state.Saved
	st.TxnsSkipped = state.Skipped
	st.ParsedAt = ing.now()
	if err := ing.statements.UpdateStatement(ctx, st); err != nil {
		return fmt.Errorf("IngestStatementFromGCS: %w", err)
	}

	ing.log.Info().
		Str("statement_id", st.ID).
		Str("bank_code", st.BankCode).
		Int("parsed", st.TxnsParsed).
		Int("saved", st.TxnsSaved).
		Int("skipped", st.TxnsSkipped).
		Msg("statement ingested")
	return nil
}

// DetectAndParse parses raw statement text without touching storage. Used by
// the one-shot CLI and by tests that only care about parser output.
func DetectAndParse(registry *statement.Registry, text string, openingHintPaisa int64) statement.ParseResult {
	return registry.Parse(statement.SplitPages(text), openingHintPaisa)
}

// FetchDocumentStep downloads the statement document from GCS.
type FetchDocumentStep struct{ ing *Ingestor }

func (s *FetchDocumentStep) Execute(ctx context.Context, state *State) error {
	data, err := s.ing.docs.Fetch(ctx, state.Statement.GCSPath)
	if err != nil {
		return err
	}
	text, err := s.ing.extractor.Extract(ctx, data)
	if err != nil {
		return err
	}
	state.Text = text
	return nil
}

// ExtractTextStep splits the extracted text into pages.
type ExtractTextStep struct{ ing *Ingestor }

func (s *ExtractTextStep) Execute(ctx context.Context, state *State) error {
	state.Pages = statement.SplitPages(state.Text)
	if len(state.Pages) == 0 {
		return fmt.Errorf("document %s produced no text", state.Statement.ID)
	}
	return nil
}

// ParsePagesStep folds the bank parser over every page. A bank code already
// on the record short-circuits detection.
type ParsePagesStep struct{ ing *Ingestor }

func (s *ParsePagesStep) Execute(ctx context.Context, state *State) error {
	if code := state.Statement.BankCode; code != "" {
		state.Result = s.ing.registry.ParseAs(code, state.Pages, 0)
		state.Result.BankCode = code
	} else {
		state.Result = s.ing.registry.Parse(state.Pages, 0)
	}
	state.Transactions = s.ing.mapTransactions(state)
	return nil
}

// CategorizeStep assigns a category to every parsed row.
type CategorizeStep struct{ ing *Ingestor }

func (s *CategorizeStep) Execute(ctx context.Context, state *State) error {
	for _, tx := range state.Transactions {
		result, err := s.ing.categorizer.Categorize(ctx, tx)
		if err != nil {
			// Categorization is best-effort; an unreachable model must not
			// fail the whole statement.
			s.ing.log.Warn().Err(err).Str("statement_id", state.Statement.ID).Msg("categorize")
			result = categorize.Result{Category: categorize.CategoryOther}
		}
		tx.Category = result.Category
		tx.Subcategory = result.SubCategory
	}
	return nil
}

// SaveTransactionsStep inserts rows the dedupe gate has not seen before.
type SaveTransactionsStep struct{ ing *Ingestor }

func (s *SaveTransactionsStep) Execute(ctx context.Context, state *State) error {
	for _, tx := range state.Transactions {
		seen, err := s.ing.txns.ExistsByDedupeKey(ctx, tx.DedupeKey)
		if err != nil {
			return err
		}
		if seen {
			state.Skipped++
			continue
		}
		if err := s.ing.txns.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		state.Saved++
	}
	return nil
}

// mapTransactions stamps identity and dedupe keys onto the parser output.
// Statement rows carry no provider transaction ID, so identical same-day
// same-amount rows within one document get an occurrence ordinal appended to
// keep the key unique while re-ingestion of the whole document stays a no-op.
func (ing *Ingestor) mapTransactions(state *State) []*domain.Transaction {
	st := state.Statement
	occurrences := make(map[string]int)
	out := make([]*domain.Transaction, 0, len(state.Result.Transactions))
	for i := range state.Result.Transactions {
		tx := state.Result.Transactions[i]
		tx.ID = uuid.NewString()
		tx.BankAccountID = st.BankAccountID
		tx.ProfileID = st.ProfileID
		tx.StatementID = st.ID
		tx.CreatedAt = ing.now()

		key := domain.DedupeKey(st.BankAccountID, "", tx.TxnDate.String(), tx.AmountPaisa)
		occurrences[key]++
		if n := occurrences[key]; n > 1 {
			key = fmt.Sprintf("%s_%d", key, n)
		}
		tx.DedupeKey = key
		out = append(out, &tx)
	}
	return out
}
