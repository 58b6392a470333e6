// Package connector owns the IMAP side of the gateway: dialing, login,
// folder selection, message retrieval, and flag updates, behind a narrow
// client interface so sessions can be tested against fakes.
package connector

import (
	"context"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/gotrs-io/mailgate/internal/models"
)

// Client is the per-folder connection a session works with. One client is
// opened per folder and never shared; the session (or driver) logs it out
// deterministically.
type Client interface {
	// Select opens a mailbox. A select failure on a confirmed folder is a
	// configuration or connection error, never per-message.
	Select(mailbox string) (*imap.SelectData, error)

	// List returns the mailbox names visible on the server.
	List() ([]string, error)

	// UIDSearch resolves candidate message UIDs for the given criteria.
	UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error)

	// FetchMessage retrieves the full RFC822 payload of one message.
	FetchMessage(uid imap.UID) ([]byte, error)

	// FetchInternalDate retrieves the server-assigned INTERNALDATE of one
	// message.
	FetchInternalDate(uid imap.UID) (time.Time, error)

	// Store applies a flag change to one message.
	Store(uid imap.UID, op imap.StoreFlagsOp, flags ...imap.Flag) error

	Close() error
	Logout() error
}

// Dialer opens authenticated connections to a mail server.
type Dialer interface {
	Connect(ctx context.Context, server *models.MailServer) (Client, error)
}
