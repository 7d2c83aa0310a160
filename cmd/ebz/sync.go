package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ebenezer-ucz/ebz/internal/localcache"
	"github.com/ebenezer-ucz/ebz/internal/schema"
	"github.com/ebenezer-ucz/ebz/internal/ui"
)

var syncFromMirror bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push collections to the remote store",
	Long: `Perform a manual full push.

By default the current remote content is loaded first and pushed back,
which is a no-op apart from repairing rows someone edited out of band.
With --from-mirror the local mirror snapshot is pushed instead, the
recovery path after an outage where the daemon's writes were dropped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()
		ctx := context.Background()

		if syncFromMirror {
			return pushMirror(ctx, env)
		}

		degraded, err := env.load(ctx)
		if err != nil {
			return err
		}
		if degraded {
			return fmt.Errorf("remote schema missing; run 'ebz setup' first")
		}

		start := time.Now()
		pushed := 0
		for table, rows := range env.st.AllRows() {
			if err := env.adapter.UpsertMany(ctx, table, rows); err != nil {
				return err
			}
			pushed += len(rows)
		}
		fmt.Printf("%s Pushed %d records in %v\n",
			ui.RenderPass("✓"), pushed, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func pushMirror(ctx context.Context, env *appEnv) error {
	cache, err := localcache.Open(env.cfg.MirrorPath())
	if err != nil {
		return fmt.Errorf("local mirror unavailable: %w", err)
	}
	defer cache.Close()

	pushed := 0
	for _, table := range schema.Tables() {
		rows, err := cache.Dump(table)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		if err := env.adapter.UpsertMany(ctx, table, rows); err != nil {
			return err
		}
		pushed += len(rows)
	}
	fmt.Printf("%s Pushed %d mirrored records\n", ui.RenderPass("✓"), pushed)
	return nil
}

func init() {
	syncCmd.Flags().BoolVar(&syncFromMirror, "from-mirror", false,
		"push the local mirror snapshot instead of remote-loaded state")
}
