package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ebenezer-ucz/ebz/internal/importer"
	"github.com/ebenezer-ucz/ebz/internal/ui"
)

var importWatch bool

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Merge record files from a drop-in directory",
	Long: `Import records from <dir>, which holds one subdirectory per table
(members/, songs/, ...) with one JSON record per file. Existing ids are
replaced, new ids are created, and everything is pushed to the remote
store when done.

With --watch the directory is monitored and changes are merged as they
appear, until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()
		ctx := context.Background()

		degraded, err := env.load(ctx)
		if err != nil {
			return err
		}
		if degraded {
			return fmt.Errorf("remote schema missing; run 'ebz setup' first")
		}

		imp := importer.New(env.st, env.cfg.NewLogger("[import] "))
		applied, err := imp.ImportDir(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s Imported %d records\n", ui.RenderPass("✓"), applied)

		if importWatch {
			watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Printf("%s Watching %s (Ctrl-C to stop)\n", ui.RenderAccent("→"), args[0])
			if err := imp.Watch(watchCtx, args[0]); err != nil {
				return err
			}
		}

		// No daemon is running; push what the import touched.
		for table, rows := range env.st.TakeDirty() {
			if err := env.adapter.UpsertMany(ctx, table, rows); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importWatch, "watch", false, "keep watching the directory for changes")
}
