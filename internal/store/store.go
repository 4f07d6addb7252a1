package store

import (
	"context"

	"github.com/nhle/mailscope/internal/model"
)

// MessageFilter controls filtering, sorting, and pagination for message
// queries.
type MessageFilter struct {
	Folder     *string
	UnreadOnly bool
	Query      *string // search sender + subject + body
	SortBy     string  // "date", "sender", "subject", "fetched_at"
	SortDesc   bool
	Limit      int
	Offset     int
}

// Store defines the persistence interface for the local message cache and
// analysis results.
type Store interface {
	// === Messages ===

	UpsertMessages(ctx context.Context, msgs []model.MessageRecord) error
	GetMessages(ctx context.Context, opts MessageFilter) ([]model.MessageRecord, error)
	GetMessageByID(ctx context.Context, id string) (*model.MessageRecord, error)
	SetRead(ctx context.Context, id string, read bool) error
	ListFolders(ctx context.Context) ([]string, error)

	// === Analyses ===

	SaveAnalysis(ctx context.Context, a model.Analysis) error
	GetAnalyses(ctx context.Context) ([]model.Analysis, error)
	GetAnalysisByMessageID(ctx context.Context, messageID string) (*model.Analysis, error)

	Close() error
}
