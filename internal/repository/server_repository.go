package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gotrs-io/mailgate/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const serverColumns = `id, name, host, port, username, password, tls, state,
	folders_only, attach_files, active`

type ServerRepository struct {
	db *sqlx.DB
}

func NewServerRepository(db *sqlx.DB) *ServerRepository {
	return &ServerRepository{db: db}
}

func (r *ServerRepository) Create(ctx context.Context, s *models.MailServer) (int64, error) {
	query := `
		INSERT INTO mail_servers (name, host, port, username, password, tls,
			state, folders_only, attach_files, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := insertReturningID(ctx, r.db, query,
		s.Name, s.Host, s.Port, s.Username, s.Password, s.TLS,
		models.StateDraft, s.FoldersOnly, s.AttachFiles, s.Active)
	if err != nil {
		return 0, fmt.Errorf("create mail server: %w", err)
	}
	s.ID = id
	s.State = models.StateDraft
	return id, nil
}

func (r *ServerRepository) GetByID(ctx context.Context, id int64) (*models.MailServer, error) {
	server := &models.MailServer{}
	query := r.db.Rebind(`SELECT ` + serverColumns + ` FROM mail_servers WHERE id = ?`)
	err := r.db.GetContext(ctx, server, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mail server %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mail server: %w", err)
	}
	return server, nil
}

func (r *ServerRepository) GetByName(ctx context.Context, name string) (*models.MailServer, error) {
	server := &models.MailServer{}
	query := r.db.Rebind(`SELECT ` + serverColumns + ` FROM mail_servers WHERE name = ?`)
	err := r.db.GetContext(ctx, server, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mail server %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mail server: %w", err)
	}
	return server, nil
}

// GetConfirmed returns active servers in confirmed state, ready for fetching.
func (r *ServerRepository) GetConfirmed(ctx context.Context) ([]*models.MailServer, error) {
	var servers []*models.MailServer
	query := r.db.Rebind(`
		SELECT ` + serverColumns + ` FROM mail_servers
		WHERE active = ? AND state = ?
		ORDER BY name`)
	if err := r.db.SelectContext(ctx, &servers, query, true, models.StateDone); err != nil {
		return nil, fmt.Errorf("list confirmed mail servers: %w", err)
	}
	return servers, nil
}

func (r *ServerRepository) SetState(ctx context.Context, id int64, state string) error {
	query := r.db.Rebind(`UPDATE mail_servers SET state = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, state, id); err != nil {
		return fmt.Errorf("update mail server state: %w", err)
	}
	return nil
}

// insertReturningID runs an insert and returns the generated id via
// RETURNING. mysql has no RETURNING clause and uses LastInsertId instead.
func insertReturningID(ctx context.Context, db *sqlx.DB, query string, args ...any) (int64, error) {
	if db.DriverName() == "mysql" {
		res, err := db.ExecContext(ctx, db.Rebind(query), args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	var id int64
	if err := db.GetContext(ctx, &id, db.Rebind(query+` RETURNING id`), args...); err != nil {
		return 0, err
	}
	return id, nil
}
