package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ebenezer-ucz/ebz/internal/localcache"
	"github.com/ebenezer-ucz/ebz/internal/report"
	"github.com/ebenezer-ucz/ebz/internal/schema"
	"github.com/ebenezer-ucz/ebz/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store connectivity and collection counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()

		degraded, err := env.load(context.Background())
		if err != nil {
			return err
		}

		fmt.Println(ui.RenderHeader("Ebenezer backend status"))
		fmt.Printf("  Store: %s\n", env.cfg.StoreDSN)
		if degraded {
			fmt.Printf("  Mode:  %s\n", ui.RenderFail("setup (schema missing)"))
		} else {
			fmt.Printf("  Mode:  %s\n", ui.RenderPass("normal"))
		}

		if cache, err := localcache.Open(env.cfg.MirrorPath()); err == nil {
			if last, err := cache.LastSync(); err == nil && !last.IsZero() {
				fmt.Printf("  Last sync: %s (%s ago)\n",
					last.Format(time.RFC3339), time.Since(last).Round(time.Second))
			} else {
				fmt.Printf("  Last sync: %s\n", ui.RenderDim("never"))
			}
			_ = cache.Close()
		}

		if degraded {
			return nil
		}

		s := report.Summarize(env.st)
		fmt.Println()
		fmt.Println(ui.RenderHeader("Team"))
		fmt.Printf("  Members:     %d (%d active)\n", s.MemberCount, s.ActiveMembers)
		fmt.Printf("  Balance:     %.2f (income %.2f, expenses %.2f)\n",
			s.Balance, s.TotalIncome, s.TotalExpenses)
		fmt.Printf("  Songs:       %d\n", s.SongCount)
		fmt.Printf("  Open cases:  %d\n", s.OpenCases)
		fmt.Printf("  Events:      %d\n", s.EventCount)

		fmt.Println()
		fmt.Println(ui.RenderHeader("Collections"))
		for _, table := range schema.Tables() {
			fmt.Printf("  %-22s %d\n", table, env.st.CountTable(table))
		}
		return nil
	},
}
