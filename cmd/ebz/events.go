package main

import (
	"context"
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/ebenezer-ucz/ebz/internal/schema"
	"github.com/ebenezer-ucz/ebz/internal/ui"
)

var (
	eventWhen     string
	eventLocation string
	eventType     string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Manage the team calendar",
}

var eventsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Schedule a team event",
	Long: `Add an event to the calendar and push it to the remote store.

The --when flag accepts natural language:

  ebz events add "Praise rehearsal" --when "next saturday at 14:00"
  ebz events add "Joint concert" --when "2026-09-12" --type Concert`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseWhen(eventWhen)
		if err != nil {
			return err
		}

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

		event := schema.TeamEvent{
			ID:       schema.NewID(),
			Title:    args[0],
			Date:     at.Format("2006-01-02"),
			Time:     at.Format("15:04"),
			Location: eventLocation,
			Type:     eventType,
		}
		if err := event.Validate(); err != nil {
			return err
		}
		if err := env.st.TeamEvents.Create(event); err != nil {
			return err
		}
		for table, rows := range env.st.TakeDirty() {
			if err := env.adapter.UpsertMany(ctx, table, rows); err != nil {
				return err
			}
		}

		fmt.Printf("%s %s: %s %s at %s\n", ui.RenderPass("✓"),
			event.Title, event.Date, event.Time, event.Location)
		return nil
	},
}

// parseWhen accepts either natural language or a plain YYYY-MM-DD date.
func parseWhen(text string) (time.Time, error) {
	if text == "" {
		return time.Time{}, fmt.Errorf("--when is required")
	}
	if t, err := time.ParseInLocation("2006-01-02", text, time.Local); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	result, err := w.Parse(text, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q: %w", text, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("could not understand %q as a date", text)
	}
	return result.Time, nil
}

func init() {
	eventsAddCmd.Flags().StringVar(&eventWhen, "when", "", "event date/time, natural language allowed")
	eventsAddCmd.Flags().StringVar(&eventLocation, "location", "UCZ Church Hall", "event location")
	eventsAddCmd.Flags().StringVar(&eventType, "type", "Rehearsal", "event type")
	eventsCmd.AddCommand(eventsAddCmd)
}
