package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/gotrs-io/mailgate/internal/config"
	"github.com/gotrs-io/mailgate/internal/database"
	"github.com/gotrs-io/mailgate/internal/gateway"
	"github.com/gotrs-io/mailgate/internal/gateway/connector"
	"github.com/gotrs-io/mailgate/internal/gateway/mailparse"
	"github.com/gotrs-io/mailgate/internal/gateway/match"
	"github.com/gotrs-io/mailgate/internal/gateway/session"
	"github.com/gotrs-io/mailgate/internal/repository"
	"github.com/gotrs-io/mailgate/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mailgate",
	Short: "IMAP folder ingestion gateway",
	Long: `mailgate scans configured IMAP folders for new messages, matches them
against business records with a pluggable match algorithm, and attaches
the mail (and its files) to the matched record.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// app bundles the wired components a command works with.
type app struct {
	cfg      *config.Config
	db       *sqlx.DB
	servers  *repository.ServerRepository
	folders  *repository.FolderRepository
	manager  *connector.Manager
	registry *match.Registry
	session  *session.Session
	driver   *gateway.Driver
	admin    *gateway.Admin
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	servers := repository.NewServerRepository(db)
	folders := repository.NewFolderRepository(db)
	objects := store.NewSQLStore(db)
	manager := connector.NewManager(connector.WithDialTimeout(cfg.Fetch.DialTimeout))
	registry := match.NewDefaultRegistry()
	parser := mailparse.NewParser(
		mailparse.WithBodyLimit(cfg.Fetch.BodyLimit),
		mailparse.WithAttachmentLimit(cfg.Fetch.AttachmentLimit),
	)
	sess := session.New(objects, registry, folders, session.WithParser(parser))
	driver := gateway.NewDriver(servers, folders, manager, sess)
	admin := gateway.NewAdmin(servers, folders, manager, registry)

	return &app{
		cfg:      cfg,
		db:       db,
		servers:  servers,
		folders:  folders,
		manager:  manager,
		registry: registry,
		session:  sess,
		driver:   driver,
		admin:    admin,
	}, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
