package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ebenezer-ucz/ebz/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Verify portal credentials",
	Long: `Check a username and password against the roster and print the access
level the portal would grant. The password is read from the terminal
without echo.`,
	Args: cobra.ExactArgs(1),
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
		if degraded {
			return fmt.Errorf("remote schema missing; run 'ebz setup' first")
		}
		if env.gate.FirstRun() {
			return fmt.Errorf("roster is empty; run 'ebz setup' to create the founding account")
		}

		fmt.Fprint(os.Stderr, "Password: ")
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		session, err := env.gate.Login(args[0], strings.TrimSpace(string(secret)))
		if err != nil {
			fmt.Printf("%s Invalid credentials\n", ui.RenderFail("✗"))
			os.Exit(1)
		}
		fmt.Printf("%s %s (%s) access level: %s\n",
			ui.RenderPass("✓"), session.DisplayName, session.Username,
			ui.RenderAccent(string(session.Level)))
		return nil
	},
}
