package pipeline

import (
	"context"

	"github.com/ametsa/bachat-core/internal/domain"
)

// DocumentFetcher pulls raw statement bytes from behind a gs:// URI.
type DocumentFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// TextExtractor turns a statement document into plain page text. Pages are
// separated by form feeds.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// StatementStore is the slice of the repository the pipeline reads and
// updates statement records through.
type StatementStore interface {
	GetStatement(ctx context.Context, id string) (*domain.Statement, error)
	UpdateStatement(ctx context.Context, st *domain.Statement) error
}

// TransactionSink persists parsed transactions behind the dedupe gate.
type TransactionSink interface {
	ExistsByDedupeKey(ctx context.Context, key string) (bool, error)
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
}
