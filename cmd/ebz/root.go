package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ebenezer-ucz/ebz/internal/auth"
	"github.com/ebenezer-ucz/ebz/internal/bootstrap"
	"github.com/ebenezer-ucz/ebz/internal/config"
	"github.com/ebenezer-ucz/ebz/internal/remote"
	"github.com/ebenezer-ucz/ebz/internal/state"
)

var flags = viper.New()

var rootCmd = &cobra.Command{
	Use:   "ebz",
	Short: "Ebenezer praise team administration backend",
	Long: `ebz manages the Ebenezer praise team's records: personnel roster,
finances, attendance, disciplinary cases, music library, events, minutes
and income projects.

Records live in local memory while the process runs and are mirrored to a
remote row store (Postgres or Turso/libSQL) after each quiet period. The
store location comes from --store, EBZ_STORE_DSN, or ebenezer.yaml.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("store", "", "remote store DSN (postgres://... or libsql://...)")
	pf.String("data-dir", "", "local data directory")
	pf.String("log-file", "", "rotating log file (in addition to stderr)")
	_ = flags.BindPFlag("store_dsn", pf.Lookup("store"))
	_ = flags.BindPFlag("data_dir", pf.Lookup("data-dir"))
	_ = flags.BindPFlag("log_file", pf.Lookup("log-file"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(eventsCmd)
}

// appEnv bundles what most commands need: resolved config, the remote
// adapter and an empty state container wired for eager deletes.
type appEnv struct {
	cfg     *config.Config
	adapter *remote.Adapter
	st      *state.State
	gate    *auth.Gate
}

func openEnv() (*appEnv, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	adapter, err := remote.Open(cfg.StoreDSN, cfg.NewLogger("[remote] "))
	if err != nil {
		return nil, fmt.Errorf("cannot reach remote store: %w", err)
	}
	st := state.New(adapter)
	return &appEnv{
		cfg:     cfg,
		adapter: adapter,
		st:      st,
		gate:    auth.NewGate(st),
	}, nil
}

func (e *appEnv) close() {
	_ = e.adapter.Close()
}

// load runs the bootstrap fetch. A missing schema flips the state into
// degraded mode and is reported through the returned flag, not as an error:
// commands decide for themselves whether setup mode is fatal.
func (e *appEnv) load(ctx context.Context) (degraded bool, err error) {
	loader := bootstrap.New(e.adapter, e.st, e.cfg.NewLogger("[bootstrap] "))
	if err := loader.Load(ctx); err != nil {
		if remote.IsSchemaMissing(err) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}
