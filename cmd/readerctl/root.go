package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hack-pad/hackpadfs"
	hpos "github.com/hack-pad/hackpadfs/os"
	"github.com/spf13/cobra"

	"github.com/kittclouds/readerkit/internal/config"
	"github.com/kittclouds/readerkit/internal/logger"
	"github.com/kittclouds/readerkit/internal/orchestrator"
	"github.com/kittclouds/readerkit/internal/remote"
	"github.com/kittclouds/readerkit/internal/store"
	"github.com/kittclouds/readerkit/internal/syncq"
)

var (
	configPath string
	cfg        *config.Config
	log        *logger.Logger
)

// session is an open installation. Close releases the key-space and the
// remote pool.
type session struct {
	orch  *orchestrator.Orchestrator
	local *store.Local
	queue *syncq.Queue
}

func (s *session) Close() error {
	return s.orch.Close()
}

// openSession and migrateSchema are replaced in tests.
var (
	openSession   = openInstallation
	migrateSchema = applySchema
)

var rootCmd = &cobra.Command{
	Use:          "readerctl",
	Short:        "Manage a readerkit installation",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		log, err = logger.New(cfg.Log.Mode)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file")
}

// openInstallation opens the SQLite key-space and connects when a remote is
// configured. Connecting replays the sync queue.
func openInstallation(ctx context.Context, cfg *config.Config, log *logger.Logger) (*session, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Local.Path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	kv, err := store.NewSQLiteKVWithDSN(cfg.Local.Path)
	if err != nil {
		return nil, err
	}

	opts := []store.LocalOption{store.WithANNThreshold(cfg.Search.ANNThreshold)}
	if cfg.Local.IndexDir != "" {
		indexFS, err := openIndexFS(cfg.Local.IndexDir)
		if err != nil {
			kv.Close()
			return nil, err
		}
		opts = append(opts, store.WithIndexFS(indexFS))
	}
	local := store.NewLocal(kv, opts...)

	queue := syncq.New(kv,
		syncq.WithPolicy(syncq.Policy{
			InitialInterval: cfg.Sync.InitialBackoff,
			MaxInterval:     cfg.Sync.MaxBackoff,
			MaxAttempts:     cfg.Sync.MaxAttempts,
		}),
		syncq.WithPermanent(remote.IsPermanent),
		syncq.WithLogger(log),
	)
	orch := orchestrator.New(local, queue,
		orchestrator.WithDialer(orchestrator.PostgresDialer),
		orchestrator.WithLogger(log),
		orchestrator.WithRemoteTimeout(cfg.Remote.Timeout),
		orchestrator.WithSearchLimit(cfg.Search.DefaultLimit),
	)
	orch.Init(ctx, cfg.Remote.URL, cfg.Remote.APIKey)
	return &session{orch: orch, local: local, queue: queue}, nil
}

func openIndexFS(dir string) (hackpadfs.FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	osfs := hpos.NewFS()
	rel, err := osfs.FromOSPath(abs)
	if err != nil {
		return nil, err
	}
	sub, err := osfs.Sub(rel)
	if err != nil {
		return nil, fmt.Errorf("failed to open index directory: %w", err)
	}
	return sub, nil
}

func applySchema(ctx context.Context, creds remote.Credentials) error {
	pg, err := remote.Dial(ctx, creds)
	if err != nil {
		return err
	}
	defer pg.Close()
	return pg.EnsureSchema(ctx)
}

func open(cmd *cobra.Command) (*session, error) {
	return openSession(cmd.Context(), cfg, log)
}

func mode(connected bool) string {
	if connected {
		return "remote"
	}
	return "local"
}
