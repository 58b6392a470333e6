package cursor

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/mailgate/internal/models"
)

type fakeClient struct {
	criteria      []*imap.SearchCriteria
	searchResult  []imap.UID
	internalDates map[imap.UID]time.Time
}

func (f *fakeClient) Select(string) (*imap.SelectData, error) { return &imap.SelectData{}, nil }
func (f *fakeClient) List() ([]string, error)                 { return nil, nil }

func (f *fakeClient) UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	f.criteria = append(f.criteria, criteria)
	return f.searchResult, nil
}

func (f *fakeClient) FetchMessage(imap.UID) ([]byte, error) { return nil, nil }

func (f *fakeClient) FetchInternalDate(uid imap.UID) (time.Time, error) {
	return f.internalDates[uid], nil
}

func (f *fakeClient) Store(imap.UID, imap.StoreFlagsOp, ...imap.Flag) error { return nil }
func (f *fakeClient) Close() error                                          { return nil }
func (f *fakeClient) Logout() error                                         { return nil }

func TestForPolicy(t *testing.T) {
	s, err := ForPolicy("")
	require.NoError(t, err)
	require.Equal(t, models.FetchPolicyUnseen, s.Name())

	s, err = ForPolicy(models.FetchPolicySince)
	require.NoError(t, err)
	require.Equal(t, models.FetchPolicySince, s.Name())

	_, err = ForPolicy("carrier-pigeon")
	require.Error(t, err)
}

func TestUnseenSelectorCriteria(t *testing.T) {
	c := &fakeClient{searchResult: []imap.UID{1, 2}}
	uids, err := UnseenSelector{}.Candidates(context.Background(), c, &models.MailFolder{Path: "INBOX"})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1, 2}, uids)

	require.Len(t, c.criteria, 1)
	require.ElementsMatch(t, []imap.Flag{imap.FlagSeen, imap.FlagDeleted}, c.criteria[0].NotFlag)
	require.True(t, c.criteria[0].Since.IsZero())
}

func TestSinceSelectorBackfillsWithoutCursor(t *testing.T) {
	c := &fakeClient{searchResult: []imap.UID{4, 5, 6}}
	s := NewSinceSelector(WithSinceLogger(log.New(io.Discard, "", 0)))

	uids, err := s.Candidates(context.Background(), c, &models.MailFolder{Path: "INBOX"})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{4, 5, 6}, uids)

	require.Len(t, c.criteria, 1)
	require.Equal(t, []imap.Flag{imap.FlagDeleted}, c.criteria[0].NotFlag)
	require.True(t, c.criteria[0].Since.IsZero())
}

func TestSinceSelectorFiltersByInternalDate(t *testing.T) {
	cursor := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	c := &fakeClient{
		searchResult: []imap.UID{1, 2, 3},
		internalDates: map[imap.UID]time.Time{
			1: cursor.Add(-time.Hour),   // older than cursor, same day
			2: cursor,                   // equal: not strictly newer
			3: cursor.Add(time.Minute),  // newer
		},
	}
	s := NewSinceSelector(WithSinceLogger(log.New(io.Discard, "", 0)))
	folder := &models.MailFolder{Path: "INBOX.sales", LastInternalDate: &cursor}

	uids, err := s.Candidates(context.Background(), c, folder)
	require.NoError(t, err)
	require.Equal(t, []imap.UID{3}, uids)

	// The server-side search is day-coarse; precision comes from the
	// client-side comparison above.
	require.Len(t, c.criteria, 1)
	require.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), c.criteria[0].Since)
}

func TestAdvancesCursor(t *testing.T) {
	require.False(t, AdvancesCursor(models.FetchPolicyUnseen))
	require.False(t, AdvancesCursor(""))
	require.True(t, AdvancesCursor(models.FetchPolicySince))
}
