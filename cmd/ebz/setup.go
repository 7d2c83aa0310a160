package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ebenezer-ucz/ebz/internal/schema"
	"github.com/ebenezer-ucz/ebz/internal/ui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize the remote schema and founding account",
	Long: `Create the sixteen record tables in the remote store and the founding
administrator account.

The wizard asks for the administrator's display name, username and
password. The account is created with the Team Leader role (full access)
and the default code of conduct is seeded. Safe to re-run: existing tables
and a non-empty roster are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.close()
		ctx := context.Background()

		if err := env.adapter.EnsureSchema(ctx, schema.Tables()); err != nil {
			return err
		}
		fmt.Printf("%s Remote schema ready\n", ui.RenderPass("✓"))

		if _, err := env.load(ctx); err != nil {
			return err
		}
		if !env.gate.FirstRun() {
			fmt.Printf("%s Roster already has members; nothing more to do\n", ui.RenderDim("·"))
			return nil
		}

		var name, username, password string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Administrator display name").
				Value(&name),
			huh.NewInput().
				Title("Username").
				Value(&username),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password),
		))
		if err := form.Run(); err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}

		session, err := env.gate.CreateFounder(name, username, password)
		if err != nil {
			return err
		}

		seed, err := schema.LoadSeed()
		if err != nil {
			return err
		}
		if env.st.GroupRules.Len() == 0 {
			for _, rule := range seed.DefaultRules() {
				if err := env.st.GroupRules.Create(rule); err != nil {
					return err
				}
			}
		}

		// No daemon is running here; push the new records directly.
		for table, rows := range env.st.AllRows() {
			if err := env.adapter.UpsertMany(ctx, table, rows); err != nil {
				return err
			}
		}

		fmt.Printf("%s Founding account %q created with full access\n",
			ui.RenderPass("✓"), session.Username)
		return nil
	},
}
