// Package cursor decides which messages in a folder count as new since the
// previous run.
package cursor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/gotrs-io/mailgate/internal/gateway/connector"
	"github.com/gotrs-io/mailgate/internal/models"
)

// Selector resolves the candidate message UIDs of one folder pass. An empty
// candidate set is a normal outcome.
type Selector interface {
	Name() string
	Candidates(ctx context.Context, c connector.Client, folder *models.MailFolder) ([]imap.UID, error)
}

// ForPolicy returns the selector implementing a folder's fetch policy.
func ForPolicy(policy string, opts ...SinceOption) (Selector, error) {
	switch policy {
	case "", models.FetchPolicyUnseen:
		return UnseenSelector{}, nil
	case models.FetchPolicySince:
		return NewSinceSelector(opts...), nil
	default:
		return nil, fmt.Errorf("unknown fetch policy %q", policy)
	}
}

// UnseenSelector implements the implicit cursor: the server-side UNSEEN
// UNDELETED search is the whole state.
type UnseenSelector struct{}

func (UnseenSelector) Name() string { return models.FetchPolicyUnseen }

func (UnseenSelector) Candidates(ctx context.Context, c connector.Client, _ *models.MailFolder) ([]imap.UID, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen, imap.FlagDeleted},
	}
	return c.UIDSearch(criteria)
}

// SinceSelector implements the explicit by-date cursor. The server-side
// SINCE search has day granularity and therefore over-selects; the
// client-side INTERNALDATE comparison restores sub-day precision by keeping
// only messages strictly newer than the stored cursor.
//
// After a successful pass the session advances the cursor to processing-time
// "now", not to the newest message timestamp. That guarantees no message is
// scanned twice even when two messages share a timestamp, and accepts as a
// known trade-off that a message whose server-assigned INTERNALDATE lands
// between the search step and the cursor write is skipped.
type SinceSelector struct {
	logger *log.Logger
}

// SinceOption customizes a SinceSelector.
type SinceOption func(*SinceSelector)

// NewSinceSelector builds the by-date selector.
func NewSinceSelector(opts ...SinceOption) *SinceSelector {
	s := &SinceSelector{
		logger: log.New(log.Writer(), "[CURSOR] ", log.LstdFlags),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithSinceLogger overrides the diagnostics logger.
func WithSinceLogger(logger *log.Logger) SinceOption {
	return func(s *SinceSelector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func (s *SinceSelector) Name() string { return models.FetchPolicySince }

func (s *SinceSelector) Candidates(ctx context.Context, c connector.Client, folder *models.MailFolder) ([]imap.UID, error) {
	if folder.LastInternalDate == nil {
		// First pass: full backfill of everything not deleted.
		return c.UIDSearch(&imap.SearchCriteria{
			NotFlag: []imap.Flag{imap.FlagDeleted},
		})
	}
	last := folder.LastInternalDate.UTC()
	day := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	coarse, err := c.UIDSearch(&imap.SearchCriteria{Since: day})
	if err != nil {
		return nil, err
	}
	var uids []imap.UID
	for _, uid := range coarse {
		internalDate, err := c.FetchInternalDate(uid)
		if err != nil {
			return nil, err
		}
		if internalDate.UTC().After(last) {
			uids = append(uids, uid)
		}
	}
	s.logger.Printf("folder %s: %d of %d candidates newer than cursor %s",
		folder.Path, len(uids), len(coarse), last.Format(time.RFC3339))
	return uids, nil
}

// AdvancesCursor reports whether a policy maintains the persisted folder
// cursor.
func AdvancesCursor(policy string) bool {
	return policy == models.FetchPolicySince
}
