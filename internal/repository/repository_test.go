package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/mailgate/internal/database"
	"github.com/gotrs-io/mailgate/internal/models"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func testMailServer() *models.MailServer {
	return &models.MailServer{
		Name:        "mx",
		Host:        "imap.example.com",
		Port:        993,
		Username:    "gateway",
		Password:    "secret",
		TLS:         true,
		AttachFiles: true,
		Active:      true,
	}
}

func TestServerCreateStartsAsDraft(t *testing.T) {
	db := testDB(t)
	repo := NewServerRepository(db)

	server := testMailServer()
	server.State = models.StateDone // must be ignored on create
	id, err := repo.Create(context.Background(), server)
	require.NoError(t, err)
	require.Positive(t, id)
	require.Equal(t, models.StateDraft, server.State)

	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "mx", got.Name)
	require.Equal(t, models.StateDraft, got.State)
	require.True(t, got.TLS)
}

func TestServerGetByName(t *testing.T) {
	db := testDB(t)
	repo := NewServerRepository(db)
	_, err := repo.Create(context.Background(), testMailServer())
	require.NoError(t, err)

	got, err := repo.GetByName(context.Background(), "mx")
	require.NoError(t, err)
	require.Equal(t, "imap.example.com", got.Host)

	_, err = repo.GetByName(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServerGetConfirmedFiltersAndSorts(t *testing.T) {
	db := testDB(t)
	repo := NewServerRepository(db)
	ctx := context.Background()

	zulu := testMailServer()
	zulu.Name = "zulu"
	zuluID, err := repo.Create(ctx, zulu)
	require.NoError(t, err)
	require.NoError(t, repo.SetState(ctx, zuluID, models.StateDone))

	alpha := testMailServer()
	alpha.Name = "alpha"
	alphaID, err := repo.Create(ctx, alpha)
	require.NoError(t, err)
	require.NoError(t, repo.SetState(ctx, alphaID, models.StateDone))

	draft := testMailServer()
	draft.Name = "draft"
	_, err = repo.Create(ctx, draft)
	require.NoError(t, err)

	inactive := testMailServer()
	inactive.Name = "inactive"
	inactive.Active = false
	inactiveID, err := repo.Create(ctx, inactive)
	require.NoError(t, err)
	require.NoError(t, repo.SetState(ctx, inactiveID, models.StateDone))

	confirmed, err := repo.GetConfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, confirmed, 2)
	require.Equal(t, "alpha", confirmed[0].Name)
	require.Equal(t, "zulu", confirmed[1].Name)
}

func testMailFolder(serverID int64, path string) *models.MailFolder {
	return &models.MailFolder{
		ServerID:       serverID,
		Sequence:       10,
		Path:           path,
		Active:         true,
		Model:          "partners",
		ModelField:     "email",
		MatchAlgorithm: "email_exact",
		MailField:      "from",
	}
}

func TestFolderCreateAppliesDefaults(t *testing.T) {
	db := testDB(t)
	repo := NewFolderRepository(db)

	folder := testMailFolder(1, "INBOX.sales")
	id, err := repo.Create(context.Background(), folder)
	require.NoError(t, err)

	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.StateDraft, got.State)
	require.Equal(t, models.MessageStateReceived, got.MsgState)
	require.Equal(t, models.FetchPolicyUnseen, got.FetchPolicy)
	require.Nil(t, got.ActionID)
	require.Nil(t, got.LastInternalDate)
	require.False(t, got.Processable())
}

func TestFolderGetByPath(t *testing.T) {
	db := testDB(t)
	repo := NewFolderRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, testMailFolder(1, "INBOX.sales"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, testMailFolder(2, "INBOX.sales"))
	require.NoError(t, err)

	got, err := repo.GetByPath(ctx, 2, "INBOX.sales")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.ServerID)

	_, err = repo.GetByPath(ctx, 3, "INBOX.sales")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFolderGetProcessableOrdering(t *testing.T) {
	db := testDB(t)
	repo := NewFolderRepository(db)
	ctx := context.Background()

	late := testMailFolder(1, "INBOX.billing")
	late.Sequence = 20
	lateID, err := repo.Create(ctx, late)
	require.NoError(t, err)
	require.NoError(t, repo.SetState(ctx, lateID, models.StateDone))

	early := testMailFolder(1, "INBOX.sales")
	early.Sequence = 5
	earlyID, err := repo.Create(ctx, early)
	require.NoError(t, err)
	require.NoError(t, repo.SetState(ctx, earlyID, models.StateDone))

	_, err = repo.Create(ctx, testMailFolder(1, "INBOX.spam"))
	require.NoError(t, err)

	otherID, err := repo.Create(ctx, testMailFolder(2, "INBOX.sales"))
	require.NoError(t, err)
	require.NoError(t, repo.SetState(ctx, otherID, models.StateDone))

	folders, err := repo.GetProcessable(ctx, 1)
	require.NoError(t, err)
	require.Len(t, folders, 2)
	require.Equal(t, "INBOX.sales", folders[0].Path)
	require.Equal(t, "INBOX.billing", folders[1].Path)
	for _, f := range folders {
		require.True(t, f.Processable())
	}

	all, err := repo.ListByServer(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 3, "drafts stay visible to the operator listing")
}

func TestFolderAdvanceCursor(t *testing.T) {
	db := testDB(t)
	repo := NewFolderRepository(db)
	ctx := context.Background()

	folder := testMailFolder(1, "INBOX.sales")
	folder.FetchPolicy = models.FetchPolicySince
	id, err := repo.Create(ctx, folder)
	require.NoError(t, err)

	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AdvanceCursor(ctx, id, ts))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.LastInternalDate)
	require.True(t, got.LastInternalDate.Equal(ts))
}
