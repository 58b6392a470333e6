// Package gateway drives the scan across configured servers and folders,
// isolating failures so one broken server never blocks the others.
package gateway

import (
	"context"
	"log"

	"github.com/gotrs-io/mailgate/internal/gateway/connector"
	"github.com/gotrs-io/mailgate/internal/gateway/session"
	"github.com/gotrs-io/mailgate/internal/metrics"
	"github.com/gotrs-io/mailgate/internal/models"
	"github.com/gotrs-io/mailgate/internal/repository"
)

// InboxFetcher is the hook for the legacy default-inbox path that runs when
// a server is not folders-only. The simpler inbox/POP3 retrieval lives
// outside this gateway; the default is a no-op.
type InboxFetcher interface {
	FetchInbox(ctx context.Context, server *models.MailServer) error
}

// Driver walks all confirmed servers and their processable folders, opening
// one fresh connection per folder.
type Driver struct {
	servers *repository.ServerRepository
	folders *repository.FolderRepository
	dialer  connector.Dialer
	session *session.Session
	inbox   InboxFetcher
	logger  *log.Logger
}

// DriverOption customizes the driver.
type DriverOption func(*Driver)

// NewDriver wires the gateway driver.
func NewDriver(servers *repository.ServerRepository, folders *repository.FolderRepository, dialer connector.Dialer, sess *session.Session, opts ...DriverOption) *Driver {
	d := &Driver{
		servers: servers,
		folders: folders,
		dialer:  dialer,
		session: sess,
		logger:  log.New(log.Writer(), "[GATEWAY] ", log.LstdFlags),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// WithInboxFetcher wires the legacy inbox path for servers that are not
// folders-only.
func WithInboxFetcher(f InboxFetcher) DriverOption {
	return func(d *Driver) {
		d.inbox = f
	}
}

// WithDriverLogger overrides the diagnostics logger.
func WithDriverLogger(logger *log.Logger) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// FetchAll runs one scan pass over every confirmed server. Failures are
// logged per server/folder boundary; nothing here is fatal to the caller,
// and a skipped folder is retried on the next run.
func (d *Driver) FetchAll(ctx context.Context) error {
	servers, err := d.servers.GetConfirmed(ctx)
	if err != nil {
		return err
	}
	for _, server := range servers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.fetchServer(ctx, server)
	}
	return nil
}

func (d *Driver) fetchServer(ctx context.Context, server *models.MailServer) {
	if !server.FoldersOnly && d.inbox != nil {
		if err := d.inbox.FetchInbox(ctx, server); err != nil {
			d.logger.Printf("inbox fetch failed on %s: %v", server.Name, err)
		}
	}
	folders, err := d.folders.GetProcessable(ctx, server.ID)
	if err != nil {
		d.logger.Printf("listing folders of %s failed: %v", server.Name, err)
		return
	}
	for _, folder := range folders {
		if ctx.Err() != nil {
			return
		}
		d.fetchFolder(ctx, server, folder)
	}
}

// fetchFolder opens a connection owned exclusively by this folder pass and
// logs it out unconditionally, bounding the blast radius of a stuck
// connection to the one folder.
func (d *Driver) fetchFolder(ctx context.Context, server *models.MailServer, folder *models.MailFolder) {
	client, err := d.dialer.Connect(ctx, server)
	if err != nil {
		metrics.FolderScanErrors.Inc()
		d.logger.Printf("connecting to %s for folder %s failed: %v", server.Name, folder.Path, err)
		return
	}
	defer func() {
		if err := client.Logout(); err != nil {
			d.logger.Printf("logout from %s failed: %v", server.Name, err)
		}
	}()

	if err := d.session.Run(ctx, client, server, folder); err != nil {
		metrics.FolderScanErrors.Inc()
		d.logger.Printf("scan of %s on %s failed: %v", folder.Path, server.Name, err)
		return
	}
	metrics.FolderScans.Inc()
	if err := client.Close(); err != nil {
		d.logger.Printf("close of %s on %s failed: %v", folder.Path, server.Name, err)
	}
}
