// Package store exposes the business data side of the gateway: candidate
// record searches, message/attachment creation, and triggered actions,
// wrapped in a per-message unit of work so one failed message never takes
// down a folder pass.
package store

import (
	"context"
	"time"
)

// Query describes a candidate search against one target model.
type Query struct {
	Model  string
	Field  string
	Op     string // "=" (default) or "like"
	Values []string

	// Since constrains candidates to records updated after the given time.
	// Used by the date-window match variant; sourced from the folder cursor.
	Since *time.Time

	// Extra is an operator-configured predicate fragment appended to the
	// search, same trust model as the folder configuration itself.
	Extra string

	Order string
	Limit int
}

// RecordMessage is the message record attached to a matched business record.
type RecordMessage struct {
	Model     string
	RecordID  int64
	MessageID string
	Subject   string
	Body      string
	EmailFrom string
	AuthorID  *int64
	Date      *time.Time
	Type      string // always "email" for this gateway
	State     string // "sent" or "received", per folder configuration
	FolderID  int64
}

// Attachment is one file attached alongside a RecordMessage.
type Attachment struct {
	MessageRowID int64
	Model        string
	RecordID     int64
	Name         string
	ContentType  string
	Content      []byte
}

// ActionContext carries the execution context for a triggered action.
type ActionContext struct {
	RecordID  int64
	RecordIDs []int64
	Model     string
}

// UnitOfWork holds the writes of exactly one message. Everything created
// through it becomes visible only if the enclosing Checkpoint commits.
type UnitOfWork interface {
	CreateMessage(ctx context.Context, msg RecordMessage) (int64, error)
	CreateAttachment(ctx context.Context, att Attachment) (int64, error)
	RunAction(ctx context.Context, actionID int64, actx ActionContext) error
}

// ObjectStore is the gateway's view of the business data store.
type ObjectStore interface {
	// SearchIDs returns candidate record ids for a well-formed query.
	// An empty result is not an error; a malformed query is a
	// configuration error.
	SearchIDs(ctx context.Context, q Query) ([]int64, error)

	// MessageExists reports whether a message with this message-id was
	// already recorded for the model. This is the idempotence check.
	MessageExists(ctx context.Context, model, messageID string) (bool, error)

	// AuthorFor resolves the associated party of a record, if the model
	// is the party model itself or references one.
	AuthorFor(ctx context.Context, model string, recordID int64) (int64, bool)

	// Checkpoint runs fn inside a unit of work scoped to one message.
	// An error from fn rolls back only that message's writes; previously
	// committed messages in the same pass stay committed.
	Checkpoint(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
