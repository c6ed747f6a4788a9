package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/curtbushko/zoom-recordings/internal/zoom"
)

// createAuthCommand creates the auth command group
func createAuthCommand(opts *cliOptions) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize with Zoom and manage stored tokens",
	}

	authCmd.AddCommand(&cobra.Command{
		Use:   "url",
		Short: "Print the authorization URL",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.closeInto(&err)

			fmt.Fprintln(cmd.OutOrStdout(), a.session.authorizationURL())
			return nil
		},
	})

	authCmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Authorize in a browser and save the issued tokens",
		Long: `Prints the authorization URL. Open it, approve access, then paste the URL
your browser was redirected to. The code it carries is exchanged for tokens
which are saved to the token file.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.closeInto(&err)

			cmd.Printf("Open this URL in your browser and approve access:\n\n  %s\n\n", a.session.authorizationURL())
			cmd.Printf("Paste the URL you were redirected to: ")

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && strings.TrimSpace(line) == "" {
				return fmt.Errorf("failed to read redirected URL: %w", err)
			}

			if err := a.session.completeAuthorization(cmd.Context(), strings.TrimSpace(line)); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			cmd.Printf("\nAuthorization complete, tokens saved to %s\n", a.cfg.Tokens.File)
			return nil
		},
	})

	authCmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new token pair",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.closeInto(&err)

			if err := a.restoreTokens(); err != nil {
				return err
			}
			if !a.metrics.InstrumentRefresher(a.session).Refresh(cmd.Context()) {
				return errors.New("token refresh failed, run 'auth login' again")
			}

			cmd.Printf("Tokens refreshed and saved to %s\n", a.cfg.Tokens.File)
			return nil
		},
	})

	authCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show when the stored access token expires",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.closeInto(&err)

			if err := a.restoreTokens(); err != nil {
				return err
			}

			cmd.Printf("Token file: %s\n", a.cfg.Tokens.File)
			expiry, err := a.session.accessTokenExpiry()
			if err != nil {
				if errors.Is(err, zoom.ErrNoAccessToken) {
					return err
				}
				cmd.Printf("Access token expiry unknown: %v\n", err)
				return nil
			}
			cmd.Println(describeExpiry(expiry, time.Now()))
			return nil
		},
	})

	return authCmd
}

// describeExpiry renders an expiry relative to now
func describeExpiry(expiry, now time.Time) string {
	when := humanize.RelTime(expiry, now, "ago", "from now")
	if !expiry.After(now) {
		return fmt.Sprintf("Access token expired %s (%s); it will be refreshed on next use", when, expiry.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("Access token valid, expires %s (%s)", when, expiry.UTC().Format(time.RFC3339))
}
