package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gotrs-io/mailgate/internal/models"
)

const folderColumns = `id, server_id, sequence_num, path, state, active, model,
	model_field, model_order, match_algorithm, mail_field, delete_matching,
	flag_nonmatching, match_first, extra_filter, msg_state, action_id,
	fetch_policy, last_internal_date`

type FolderRepository struct {
	db *sqlx.DB
}

func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, f *models.MailFolder) (int64, error) {
	if f.MsgState == "" {
		f.MsgState = models.MessageStateReceived
	}
	if f.FetchPolicy == "" {
		f.FetchPolicy = models.FetchPolicyUnseen
	}
	query := `
		INSERT INTO mail_folders (server_id, sequence_num, path, state, active,
			model, model_field, model_order, match_algorithm, mail_field,
			delete_matching, flag_nonmatching, match_first, extra_filter,
			msg_state, action_id, fetch_policy, last_internal_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := insertReturningID(ctx, r.db, query,
		f.ServerID, f.Sequence, f.Path, models.StateDraft, f.Active,
		f.Model, f.ModelField, f.ModelOrder, f.MatchAlgorithm, f.MailField,
		f.DeleteMatching, f.FlagNonmatch, f.MatchFirst, f.ExtraFilter,
		f.MsgState, f.ActionID, f.FetchPolicy, f.LastInternalDate)
	if err != nil {
		return 0, fmt.Errorf("create mail folder: %w", err)
	}
	f.ID = id
	f.State = models.StateDraft
	return id, nil
}

func (r *FolderRepository) GetByID(ctx context.Context, id int64) (*models.MailFolder, error) {
	folder := &models.MailFolder{}
	query := r.db.Rebind(`SELECT ` + folderColumns + ` FROM mail_folders WHERE id = ?`)
	err := r.db.GetContext(ctx, folder, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mail folder %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mail folder: %w", err)
	}
	return folder, nil
}

func (r *FolderRepository) GetByPath(ctx context.Context, serverID int64, path string) (*models.MailFolder, error) {
	folder := &models.MailFolder{}
	query := r.db.Rebind(`
		SELECT ` + folderColumns + ` FROM mail_folders
		WHERE server_id = ? AND path = ?`)
	err := r.db.GetContext(ctx, folder, query, serverID, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mail folder %q: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mail folder: %w", err)
	}
	return folder, nil
}

// ListByServer returns all folders of a server in processing order,
// including drafts and archived ones.
func (r *FolderRepository) ListByServer(ctx context.Context, serverID int64) ([]*models.MailFolder, error) {
	var folders []*models.MailFolder
	query := r.db.Rebind(`
		SELECT ` + folderColumns + ` FROM mail_folders
		WHERE server_id = ?
		ORDER BY sequence_num, id`)
	if err := r.db.SelectContext(ctx, &folders, query, serverID); err != nil {
		return nil, fmt.Errorf("list mail folders: %w", err)
	}
	return folders, nil
}

// GetProcessable returns the active, confirmed folders of one server in
// configured sequence order.
func (r *FolderRepository) GetProcessable(ctx context.Context, serverID int64) ([]*models.MailFolder, error) {
	var folders []*models.MailFolder
	query := r.db.Rebind(`
		SELECT ` + folderColumns + ` FROM mail_folders
		WHERE server_id = ? AND active = ? AND state = ?
		ORDER BY sequence_num, id`)
	if err := r.db.SelectContext(ctx, &folders, query, serverID, true, models.StateDone); err != nil {
		return nil, fmt.Errorf("list processable mail folders: %w", err)
	}
	return folders, nil
}

func (r *FolderRepository) SetState(ctx context.Context, id int64, state string) error {
	query := r.db.Rebind(`UPDATE mail_folders SET state = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, state, id); err != nil {
		return fmt.Errorf("update mail folder state: %w", err)
	}
	return nil
}

// AdvanceCursor moves the by-date cursor forward. Called only after a fully
// successful folder pass, with the processing-time timestamp.
func (r *FolderRepository) AdvanceCursor(ctx context.Context, id int64, ts time.Time) error {
	query := r.db.Rebind(`UPDATE mail_folders SET last_internal_date = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, ts.UTC(), id); err != nil {
		return fmt.Errorf("advance folder cursor: %w", err)
	}
	return nil
}
