package gateway

import (
	"context"
	"fmt"

	"github.com/gotrs-io/mailgate/internal/gateway/connector"
	"github.com/gotrs-io/mailgate/internal/gateway/match"
	"github.com/gotrs-io/mailgate/internal/models"
	"github.com/gotrs-io/mailgate/internal/repository"
)

// Admin exposes the operator-facing configuration actions: confirming
// servers and folders, resetting them to draft, and listing the mailboxes a
// server offers. Confirmation errors surface synchronously; nothing here is
// retried.
type Admin struct {
	servers  *repository.ServerRepository
	folders  *repository.FolderRepository
	dialer   connector.Dialer
	registry *match.Registry
}

// NewAdmin wires the admin actions.
func NewAdmin(servers *repository.ServerRepository, folders *repository.FolderRepository, dialer connector.Dialer, registry *match.Registry) *Admin {
	return &Admin{servers: servers, folders: folders, dialer: dialer, registry: registry}
}

// ConfirmServer tests the connection and moves the server to the confirmed
// state. Any failure leaves it in draft.
func (a *Admin) ConfirmServer(ctx context.Context, server *models.MailServer) error {
	if err := a.servers.SetState(ctx, server.ID, models.StateDraft); err != nil {
		return err
	}
	client, err := a.dialer.Connect(ctx, server)
	if err != nil {
		return fmt.Errorf("confirm server %s: %w", server.Name, err)
	}
	if err := client.Logout(); err != nil {
		return fmt.Errorf("confirm server %s: %w", server.Name, err)
	}
	if err := a.servers.SetState(ctx, server.ID, models.StateDone); err != nil {
		return err
	}
	server.State = models.StateDone
	return nil
}

// ConfirmFolder validates the folder configuration (known match algorithm)
// and performs a live folder-open check before moving it to confirmed.
func (a *Admin) ConfirmFolder(ctx context.Context, server *models.MailServer, folder *models.MailFolder) error {
	if err := a.folders.SetState(ctx, folder.ID, models.StateDraft); err != nil {
		return err
	}
	if !folder.Active {
		return nil
	}
	if _, err := a.registry.Get(folder.MatchAlgorithm); err != nil {
		return err
	}
	client, err := a.dialer.Connect(ctx, server)
	if err != nil {
		return fmt.Errorf("confirm folder %s: %w", folder.Path, err)
	}
	defer func() { _ = client.Logout() }()
	if _, err := client.Select(folder.Path); err != nil {
		return fmt.Errorf("invalid folder %s on %s: %w", folder.Path, server.Name, err)
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("confirm folder %s: %w", folder.Path, err)
	}
	if err := a.folders.SetState(ctx, folder.ID, models.StateDone); err != nil {
		return err
	}
	folder.State = models.StateDone
	return nil
}

// SetFolderDraft resets a folder to draft without any server round-trip.
func (a *Admin) SetFolderDraft(ctx context.Context, folderID int64) error {
	return a.folders.SetState(ctx, folderID, models.StateDraft)
}

// AvailableFolders lists the mailbox names the server offers. The server
// must be confirmed first.
func (a *Admin) AvailableFolders(ctx context.Context, server *models.MailServer) ([]string, error) {
	if server.State != models.StateDone {
		return nil, fmt.Errorf("server %s: confirm connection first", server.Name)
	}
	client, err := a.dialer.Connect(ctx, server)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout() }()
	names, err := client.List()
	if err != nil {
		return nil, fmt.Errorf("list folders on %s: %w", server.Name, err)
	}
	return names, nil
}

// AlgorithmInfos exposes the registry's UI declarations (display name, help
// text, required/read-only fields) for the configuration form.
func (a *Admin) AlgorithmInfos() []match.Info {
	return a.registry.Infos()
}
