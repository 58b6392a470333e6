// Package session runs one folder's scan: candidate selection, per-message
// matching with checkpoint isolation, and server-side flag updates.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/gotrs-io/mailgate/internal/gateway/connector"
	"github.com/gotrs-io/mailgate/internal/gateway/cursor"
	"github.com/gotrs-io/mailgate/internal/gateway/mailparse"
	"github.com/gotrs-io/mailgate/internal/gateway/match"
	"github.com/gotrs-io/mailgate/internal/metrics"
	"github.com/gotrs-io/mailgate/internal/models"
	"github.com/gotrs-io/mailgate/internal/store"
)

// ErrFolderNotProcessable is returned when a session is asked to scan an
// inactive or unconfirmed folder.
var ErrFolderNotProcessable = errors.New("folder inactive or not confirmed")

// CursorAdvancer persists the by-date cursor after a successful pass.
type CursorAdvancer interface {
	AdvanceCursor(ctx context.Context, folderID int64, ts time.Time) error
}

// Session scans folders. It is safe to reuse across folders; each Run gets
// its own exclusively-owned connection from the caller.
type Session struct {
	store    store.ObjectStore
	registry *match.Registry
	parser   *mailparse.Parser
	cursors  CursorAdvancer
	logger   *log.Logger
	now      func() time.Time
}

// Option customizes a Session.
type Option func(*Session)

// New builds a folder session engine.
func New(st store.ObjectStore, registry *match.Registry, cursors CursorAdvancer, opts ...Option) *Session {
	s := &Session{
		store:    st,
		registry: registry,
		parser:   mailparse.NewParser(),
		cursors:  cursors,
		logger:   log.New(log.Writer(), "[FOLDER] ", log.LstdFlags),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithParser overrides the message parser.
func WithParser(p *mailparse.Parser) Option {
	return func(s *Session) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithLogger overrides the diagnostics logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the wall clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Run scans one folder over the given connection. Per-message failures are
// logged and isolated; an error return means the pass itself could not run
// (bad folder state, select failure, search failure) and the cursor is left
// untouched.
func (s *Session) Run(ctx context.Context, client connector.Client, server *models.MailServer, folder *models.MailFolder) error {
	if !folder.Processable() {
		return fmt.Errorf("%w: %s", ErrFolderNotProcessable, folder.Path)
	}
	algorithm, err := s.registry.Get(folder.MatchAlgorithm)
	if err != nil {
		return err
	}
	selector, err := cursor.ForPolicy(folder.FetchPolicy)
	if err != nil {
		return err
	}
	if _, err := client.Select(folder.Path); err != nil {
		return fmt.Errorf("open folder %s on %s: %w", folder.Path, server.Name, err)
	}
	uids, err := selector.Candidates(ctx, client, folder)
	if err != nil {
		return fmt.Errorf("search folder %s on %s: %w", folder.Path, server.Name, err)
	}
	s.logger.Printf("checking %d messages in %s on %s", len(uids), folder.Path, server.Name)

	// Candidates are processed in server-returned order. A failure rolls
	// back one message's writes and the loop moves on. Each message counts
	// toward exactly one outcome, decided after its checkpoint settles.
	for _, uid := range uids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var outcome string
		err := s.store.Checkpoint(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
			var err error
			outcome, err = s.applyMatching(ctx, uow, client, server, folder, algorithm, uid)
			return err
		})
		if err != nil {
			metrics.MessagesProcessed.WithLabelValues(metrics.OutcomeFailed).Inc()
			s.logger.Printf("failed to process message %d in %s on %s: %v", uid, folder.Path, server.Name, err)
			continue
		}
		metrics.MessagesProcessed.WithLabelValues(outcome).Inc()
		if outcome == metrics.OutcomeMatched && folder.ActionID != nil {
			metrics.ActionsTriggered.Inc()
		}
	}

	if cursor.AdvancesCursor(folder.FetchPolicy) && s.cursors != nil {
		// Advance to processing time, not to the newest message seen;
		// see the cursor package for the trade-off.
		if err := s.cursors.AdvanceCursor(ctx, folder.ID, s.now()); err != nil {
			return fmt.Errorf("advance cursor for %s: %w", folder.Path, err)
		}
	}
	return nil
}

// applyMatching runs the per-message state machine: fetch, parse, dedup,
// match, attach, trigger, flag. It returns the message's outcome label;
// on error the caller counts the message as failed instead.
func (s *Session) applyMatching(ctx context.Context, uow store.UnitOfWork, client connector.Client, server *models.MailServer, folder *models.MailFolder, algorithm match.Algorithm, uid imap.UID) (string, error) {
	raw, err := client.FetchMessage(uid)
	if err != nil {
		return "", err
	}
	msg, err := s.parser.Parse(raw)
	if err != nil {
		return "", err
	}
	if msg.MessageID != "" {
		exists, err := s.store.MessageExists(ctx, folder.Model, msg.MessageID)
		if err != nil {
			return "", err
		}
		if exists {
			// Already handled in a previous pass; replay-safe no-op.
			return metrics.OutcomeDuplicate, nil
		}
	}

	matches, err := algorithm.SearchMatches(ctx, s.store, folder, msg)
	if err != nil {
		return "", err
	}
	// Exactly one candidate matches. Multiple candidates match only under
	// first-match-wins; otherwise ambiguity resolves to no match.
	matched := len(matches) == 1 || (len(matches) > 1 && folder.MatchFirst)

	if matched {
		recordID, err := algorithm.HandleMatch(ctx, uow, s.store, matches[0], server, folder, msg, uid)
		if err != nil {
			return "", err
		}
		if folder.ActionID != nil {
			if err := uow.RunAction(ctx, *folder.ActionID, store.ActionContext{
				RecordID:  recordID,
				RecordIDs: []int64{recordID},
				Model:     folder.Model,
			}); err != nil {
				return "", err
			}
		}
	}
	if err := UpdateMessageFlags(client, folder, uid, matched, false); err != nil {
		return "", err
	}
	if matched {
		return metrics.OutcomeMatched, nil
	}
	return metrics.OutcomeUnmatched, nil
}

// UpdateMessageFlags applies the post-processing server flags. On a match,
// delete-on-match takes priority over clearing a stale flag; on a non-match
// the message is flagged when the folder says so.
func UpdateMessageFlags(client connector.Client, folder *models.MailFolder, uid imap.UID, matched, wasFlagged bool) error {
	if matched {
		if folder.DeleteMatching {
			return client.Store(uid, imap.StoreFlagsAdd, imap.FlagDeleted)
		}
		if wasFlagged && folder.FlagNonmatch {
			return client.Store(uid, imap.StoreFlagsDel, imap.FlagFlagged)
		}
		return nil
	}
	if folder.FlagNonmatch {
		return client.Store(uid, imap.StoreFlagsAdd, imap.FlagFlagged)
	}
	return nil
}

// AttachManually attaches one specific message to one specific record,
// bypassing matching and dedup. This backs the operator's one-off attach
// action; the side effect is identical to the automatic path.
func (s *Session) AttachManually(ctx context.Context, client connector.Client, server *models.MailServer, folder *models.MailFolder, uid imap.UID, recordID int64) error {
	algorithm, err := s.registry.Get(folder.MatchAlgorithm)
	if err != nil {
		return err
	}
	if _, err := client.Select(folder.Path); err != nil {
		return fmt.Errorf("open folder %s on %s: %w", folder.Path, server.Name, err)
	}
	raw, err := client.FetchMessage(uid)
	if err != nil {
		return err
	}
	msg, err := s.parser.Parse(raw)
	if err != nil {
		return err
	}
	return s.store.Checkpoint(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		if _, err := algorithm.HandleMatch(ctx, uow, s.store, recordID, server, folder, msg, uid); err != nil {
			return err
		}
		return UpdateMessageFlags(client, folder, uid, true, true)
	})
}
