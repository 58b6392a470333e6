package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	orderPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*( +(?i:asc|desc))?$`)
)

// ErrBadQuery marks a malformed search: a configuration error to surface to
// the operator, never something to retry.
var ErrBadQuery = errors.New("malformed search query")

// SQLStore implements ObjectStore on a sqlx database. Target model names map
// to table names; each target table is expected to expose an integer id
// column and, for date-window searches, an updated_at column.
type SQLStore struct {
	db     *sqlx.DB
	logger *log.Logger
	now    func() time.Time

	// partnerFields maps a model to the column referencing its party
	// record. The empty string marks the party model itself.
	partnerFields map[string]string
}

// SQLStoreOption customizes the store.
type SQLStoreOption func(*SQLStore)

// NewSQLStore builds the sqlx-backed object store.
func NewSQLStore(db *sqlx.DB, opts ...SQLStoreOption) *SQLStore {
	s := &SQLStore{
		db:            db,
		logger:        log.New(log.Writer(), "[STORE] ", log.LstdFlags),
		now:           func() time.Time { return time.Now().UTC() },
		partnerFields: map[string]string{"partners": ""},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithStoreLogger overrides the diagnostics logger.
func WithStoreLogger(logger *log.Logger) SQLStoreOption {
	return func(s *SQLStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPartnerField declares how a model references its party record.
// An empty field marks the model as the party model itself.
func WithPartnerField(model, field string) SQLStoreOption {
	return func(s *SQLStore) {
		s.partnerFields[model] = field
	}
}

// WithStoreClock overrides the wall clock, primarily for tests.
func WithStoreClock(now func() time.Time) SQLStoreOption {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}

func (s *SQLStore) SearchIDs(ctx context.Context, q Query) ([]int64, error) {
	if len(q.Values) == 0 {
		return nil, nil
	}
	if !identPattern.MatchString(q.Model) || !identPattern.MatchString(q.Field) {
		return nil, fmt.Errorf("%w: model %q field %q", ErrBadQuery, q.Model, q.Field)
	}
	op := q.Op
	switch op {
	case "", "=":
		op = "="
	case "like":
		op = "LIKE"
	default:
		return nil, fmt.Errorf("%w: operator %q", ErrBadQuery, q.Op)
	}

	var sb strings.Builder
	args := make([]any, 0, len(q.Values)+1)
	sb.WriteString("SELECT id FROM ")
	sb.WriteString(q.Model)
	sb.WriteString(" WHERE (")
	for i, v := range q.Values {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString(q.Field)
		sb.WriteString(" ")
		sb.WriteString(op)
		sb.WriteString(" ?")
		args = append(args, v)
	}
	sb.WriteString(")")
	if q.Since != nil {
		sb.WriteString(" AND updated_at > ?")
		args = append(args, q.Since.UTC())
	}
	if extra := strings.TrimSpace(q.Extra); extra != "" {
		sb.WriteString(" AND (")
		sb.WriteString(extra)
		sb.WriteString(")")
	}
	if q.Order != "" {
		if !orderPattern.MatchString(strings.TrimSpace(q.Order)) {
			return nil, fmt.Errorf("%w: order %q", ErrBadQuery, q.Order)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.TrimSpace(q.Order))
	} else {
		sb.WriteString(" ORDER BY id")
	}
	if q.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}

	var ids []int64
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(sb.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("search %s.%s: %w", q.Model, q.Field, err)
	}
	return ids, nil
}

func (s *SQLStore) MessageExists(ctx context.Context, model, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var count int
	query := s.db.Rebind(`SELECT COUNT(*) FROM mail_messages WHERE model = ? AND message_id = ?`)
	if err := s.db.GetContext(ctx, &count, query, model, messageID); err != nil {
		return false, fmt.Errorf("message dedup lookup: %w", err)
	}
	return count > 0, nil
}

func (s *SQLStore) AuthorFor(ctx context.Context, model string, recordID int64) (int64, bool) {
	field, ok := s.partnerFields[model]
	if !ok {
		return 0, false
	}
	if field == "" {
		return recordID, true
	}
	if !identPattern.MatchString(model) || !identPattern.MatchString(field) {
		return 0, false
	}
	var partnerID sql.NullInt64
	query := s.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, field, model))
	if err := s.db.GetContext(ctx, &partnerID, query, recordID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Printf("partner lookup failed for %s(%d): %v", model, recordID, err)
		}
		return 0, false
	}
	if !partnerID.Valid {
		return 0, false
	}
	return partnerID.Int64, true
}

// Checkpoint opens a transaction scoped to one message, matching the
// savepoint-per-message model: fn's writes commit together or not at all,
// while surrounding messages are unaffected.
func (s *SQLStore) Checkpoint(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin message checkpoint: %w", err)
	}
	uow := &sqlUnitOfWork{tx: tx, store: s}
	if err := fn(ctx, uow); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Printf("checkpoint rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message checkpoint: %w", err)
	}
	return nil
}

type sqlUnitOfWork struct {
	tx    *sqlx.Tx
	store *SQLStore
}

func (u *sqlUnitOfWork) CreateMessage(ctx context.Context, msg RecordMessage) (int64, error) {
	if msg.Type == "" {
		msg.Type = "email"
	}
	// An absent message-id is stored as NULL so id-less messages never
	// collide on the (model, message_id) unique constraint.
	var messageID any
	if msg.MessageID != "" {
		messageID = msg.MessageID
	}
	query := `
		INSERT INTO mail_messages (model, record_id, message_id, subject,
			body, email_from, author_id, message_date, message_type, state,
			folder_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := u.insertRow(ctx, query,
		msg.Model, msg.RecordID, messageID, msg.Subject, msg.Body,
		msg.EmailFrom, msg.AuthorID, msg.Date, msg.Type, msg.State,
		msg.FolderID, u.store.now())
	if err != nil {
		return 0, fmt.Errorf("create message record: %w", err)
	}
	return id, nil
}

func (u *sqlUnitOfWork) CreateAttachment(ctx context.Context, att Attachment) (int64, error) {
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	query := `
		INSERT INTO mail_attachments (message_row_id, model, record_id, name,
			content_type, content, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := u.insertRow(ctx, query,
		att.MessageRowID, att.Model, att.RecordID, att.Name,
		contentType, att.Content, uuid.NewString(), u.store.now())
	if err != nil {
		return 0, fmt.Errorf("create attachment record: %w", err)
	}
	return id, nil
}

// RunAction enqueues a triggered-action run; the action subsystem consumes
// the queue outside this gateway.
func (u *sqlUnitOfWork) RunAction(ctx context.Context, actionID int64, actx ActionContext) error {
	query := u.tx.Rebind(`
		INSERT INTO mail_action_runs (action_id, model, record_id, created_at)
		VALUES (?, ?, ?, ?)`)
	if _, err := u.tx.ExecContext(ctx, query,
		actionID, actx.Model, actx.RecordID, u.store.now()); err != nil {
		return fmt.Errorf("enqueue action run: %w", err)
	}
	return nil
}

// insertRow runs an insert and returns the generated id. Drivers without
// RETURNING support (mysql) use LastInsertId instead.
func (u *sqlUnitOfWork) insertRow(ctx context.Context, query string, args ...any) (int64, error) {
	if u.tx.DriverName() == "mysql" {
		res, err := u.tx.ExecContext(ctx, u.tx.Rebind(query), args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	var id int64
	if err := u.tx.GetContext(ctx, &id, u.tx.Rebind(query+` RETURNING id`), args...); err != nil {
		return 0, err
	}
	return id, nil
}
