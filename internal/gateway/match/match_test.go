package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/mailgate/internal/gateway/mailparse"
	"github.com/gotrs-io/mailgate/internal/models"
	"github.com/gotrs-io/mailgate/internal/store"
)

type fakeStore struct {
	queries []store.Query
	results [][]int64
	authors map[int64]int64

	messages    []store.RecordMessage
	attachments []store.Attachment
	actions     []int64
}

func (f *fakeStore) SearchIDs(_ context.Context, q store.Query) ([]int64, error) {
	f.queries = append(f.queries, q)
	if len(f.results) == 0 {
		return nil, nil
	}
	ids := f.results[0]
	f.results = f.results[1:]
	return ids, nil
}

func (f *fakeStore) MessageExists(context.Context, string, string) (bool, error) {
	return false, nil
}

func (f *fakeStore) AuthorFor(_ context.Context, _ string, recordID int64) (int64, bool) {
	id, ok := f.authors[recordID]
	return id, ok
}

func (f *fakeStore) Checkpoint(ctx context.Context, fn func(context.Context, store.UnitOfWork) error) error {
	return fn(ctx, f)
}

func (f *fakeStore) CreateMessage(_ context.Context, msg store.RecordMessage) (int64, error) {
	f.messages = append(f.messages, msg)
	return int64(len(f.messages)), nil
}

func (f *fakeStore) CreateAttachment(_ context.Context, att store.Attachment) (int64, error) {
	f.attachments = append(f.attachments, att)
	return int64(len(f.attachments)), nil
}

func (f *fakeStore) RunAction(_ context.Context, actionID int64, _ store.ActionContext) error {
	f.actions = append(f.actions, actionID)
	return nil
}

func salesFolder() *models.MailFolder {
	return &models.MailFolder{
		ID:             4,
		Path:           "INBOX.sales",
		State:          models.StateDone,
		Active:         true,
		Model:          "partners",
		ModelField:     "email",
		MatchAlgorithm: "email_exact",
		MailField:      "from",
		MsgState:       models.MessageStateReceived,
	}
}

func messageFrom(addr string) *mailparse.ParsedMessage {
	return &mailparse.ParsedMessage{
		Subject:   "hello",
		From:      addr,
		MessageID: "msg-1@x",
		Body:      "body",
		Headers:   map[string][]string{"from": {addr}},
	}
}

func TestRegistryResolvesBuiltins(t *testing.T) {
	registry := NewDefaultRegistry()
	for _, key := range []string{"email_exact", "email_domain", "email_exact_since"} {
		a, err := registry.Get(key)
		require.NoError(t, err)
		require.Equal(t, key, a.Info().Key)
	}
	_, err := registry.Get("nope")
	require.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestRegistryInfosSorted(t *testing.T) {
	infos := NewDefaultRegistry().Infos()
	require.Len(t, infos, 3)
	require.Equal(t, "email_domain", infos[0].Key)
	require.Equal(t, "email_exact", infos[1].Key)
	require.Equal(t, "email_exact_since", infos[2].Key)
	for _, info := range infos {
		require.NotEmpty(t, info.Name)
		require.NotEmpty(t, info.Description)
		require.Contains(t, info.RequiredFields, "mail_field")
	}
}

func TestEmailExactSearch(t *testing.T) {
	st := &fakeStore{results: [][]int64{{7}}}
	ids, err := EmailExact{}.SearchMatches(context.Background(), st, salesFolder(), messageFrom("a@x.com"))
	require.NoError(t, err)
	require.Equal(t, []int64{7}, ids)

	require.Len(t, st.queries, 1)
	q := st.queries[0]
	require.Equal(t, "partners", q.Model)
	require.Equal(t, "email", q.Field)
	require.Equal(t, []string{"a@x.com"}, q.Values)
	require.Nil(t, q.Since)
}

func TestEmailExactNoAddressYieldsNoMatch(t *testing.T) {
	st := &fakeStore{}
	folder := salesFolder()
	folder.MailField = "to" // message has no to header
	ids, err := EmailExact{}.SearchMatches(context.Background(), st, folder, messageFrom("a@x.com"))
	require.NoError(t, err)
	require.Empty(t, ids)
	require.Empty(t, st.queries, "no search should be issued without addresses")
}

func TestEmailDomainFallsBackToDomainSearch(t *testing.T) {
	st := &fakeStore{results: [][]int64{nil, {3, 9}}}
	ids, err := EmailDomain{}.SearchMatches(context.Background(), st, salesFolder(), messageFrom("a@x.com"))
	require.NoError(t, err)
	require.Equal(t, []int64{3, 9}, ids)

	require.Len(t, st.queries, 2)
	require.Equal(t, "", st.queries[0].Op)
	require.Equal(t, "like", st.queries[1].Op)
	require.Equal(t, []string{"%@x.com"}, st.queries[1].Values)
}

func TestEmailDomainPrefersExactHit(t *testing.T) {
	st := &fakeStore{results: [][]int64{{5}}}
	ids, err := EmailDomain{}.SearchMatches(context.Background(), st, salesFolder(), messageFrom("a@x.com"))
	require.NoError(t, err)
	require.Equal(t, []int64{5}, ids)
	require.Len(t, st.queries, 1)
}

func TestEmailExactSinceAppliesCursorWindow(t *testing.T) {
	cursor := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	folder := salesFolder()
	folder.MatchAlgorithm = "email_exact_since"
	folder.LastInternalDate = &cursor

	st := &fakeStore{results: [][]int64{{2}}}
	ids, err := EmailExactSince{}.SearchMatches(context.Background(), st, folder, messageFrom("a@x.com"))
	require.NoError(t, err)
	require.Equal(t, []int64{2}, ids)
	require.Len(t, st.queries, 1)
	require.NotNil(t, st.queries[0].Since)
	require.Equal(t, cursor, *st.queries[0].Since)
}

func TestAttachMailCreatesMessageAndAttachments(t *testing.T) {
	st := &fakeStore{authors: map[int64]int64{7: 7}}
	server := &models.MailServer{Name: "mx", AttachFiles: true}
	folder := salesFolder()
	msg := messageFrom("a@x.com")
	msg.Attachments = []mailparse.Attachment{
		{Name: "rfq.pdf", ContentType: "application/pdf", Content: []byte("pdf")},
		{Name: "", Content: []byte("no name")}, // malformed, skipped
		{Name: "empty.txt"},                    // no content, skipped
	}

	recordID, err := AttachMail(context.Background(), st, st, 7, server, folder, msg)
	require.NoError(t, err)
	require.Equal(t, int64(7), recordID)

	require.Len(t, st.messages, 1)
	created := st.messages[0]
	require.Equal(t, "partners", created.Model)
	require.Equal(t, int64(7), created.RecordID)
	require.Equal(t, "msg-1@x", created.MessageID)
	require.Equal(t, "email", created.Type)
	require.Equal(t, models.MessageStateReceived, created.State)
	require.NotNil(t, created.AuthorID)
	require.Equal(t, int64(7), *created.AuthorID)

	require.Len(t, st.attachments, 1)
	require.Equal(t, "rfq.pdf", st.attachments[0].Name)
	require.Equal(t, int64(1), st.attachments[0].MessageRowID)
}

func TestAttachMailSkipsFilesWhenServerDisablesThem(t *testing.T) {
	st := &fakeStore{}
	server := &models.MailServer{Name: "mx", AttachFiles: false}
	msg := messageFrom("a@x.com")
	msg.Attachments = []mailparse.Attachment{{Name: "rfq.pdf", Content: []byte("pdf")}}

	_, err := AttachMail(context.Background(), st, st, 7, server, salesFolder(), msg)
	require.NoError(t, err)
	require.Len(t, st.messages, 1)
	require.Empty(t, st.attachments)
}
