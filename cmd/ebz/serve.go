package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ebenezer-ucz/ebz/internal/ai"
	"github.com/ebenezer-ucz/ebz/internal/importer"
	"github.com/ebenezer-ucz/ebz/internal/localcache"
	"github.com/ebenezer-ucz/ebz/internal/server"
	"github.com/ebenezer-ucz/ebz/internal/syncd"
	"github.com/ebenezer-ucz/ebz/internal/ui"
)

var serveImportDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portal API and sync daemon",
	Long: `Start the backend: load all collections from the remote store, serve
the portal API, and mirror local edits back to the store after each quiet
period.

If the remote schema is missing, the process serves in setup mode: local
edits work, nothing syncs, and the portal offers schema initialization.
Run 'ebz setup' to create the schema; setup mode persists until restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		degraded, err := env.load(ctx)
		if err != nil {
			return err
		}
		if degraded {
			fmt.Printf("%s Remote schema missing; serving in setup mode. Run 'ebz setup'.\n",
				ui.RenderFail("!"))
		} else {
			fmt.Printf("%s Collections loaded from %s\n", ui.RenderPass("✓"), env.cfg.StoreDSN)
		}

		var mirror syncd.Mirror
		cache, err := localcache.Open(env.cfg.MirrorPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: local mirror unavailable: %v\n", err)
		} else {
			mirror = cache
			defer cache.Close()
		}

		gen := ai.New(ai.Config{
			Provider: env.cfg.AI.Provider,
			APIKey:   env.cfg.AI.APIKey,
			Model:    env.cfg.AI.Model,
		}, env.cfg.NewLogger("[ai] "))

		srv := server.New(env.st, env.gate, gen, &server.Config{
			Addr:   env.cfg.Listen,
			Logger: env.cfg.NewLogger("[server] "),
		})
		env.st.SetEventSink(srv.Feed())
		if err := srv.Start(); err != nil {
			return err
		}
		fmt.Printf("%s Portal API on %s\n", ui.RenderAccent("→"), srv.Addr())

		scheduler := syncd.New(env.st, env.adapter, mirror, &syncd.Config{
			DebounceInterval: env.cfg.Debounce,
			Logger:           env.cfg.NewLogger("[syncd] "),
		})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = scheduler.Run(ctx)
		}()

		if serveImportDir != "" {
			imp := importer.New(env.st, env.cfg.NewLogger("[import] "))
			go func() {
				if err := imp.Watch(ctx, serveImportDir); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: import watcher stopped: %v\n", err)
				}
			}()
		}

		<-ctx.Done()
		fmt.Printf("\n%s Shutting down\n", ui.RenderDim("·"))
		<-done

		shutdownCtx, cancel := context.WithTimeout(context.Background(), env.cfg.Debounce*5)
		defer cancel()
		// Flush whatever a pending debounce did not get to.
		scheduler.Push(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveImportDir, "import-dir", "",
		"watch this directory for record files to merge")
}
