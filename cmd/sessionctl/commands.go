package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/spf13/cobra"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var scopes []string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and store a new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Ctrl-C abandons the pending login
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts.config, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			session, err := a.manager.CreateSession(ctx, scopes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", session.AccountLabel, session.ID)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&scopes, "scope", "s", nil, "scope to request, repeatable")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout <id>",
		Short: "Remove a session and revoke its tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.config, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := a.manager.RemoveSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out %s\n", args[0])
			return nil
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var scopes []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.config, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printSessions(cmd.OutOrStdout(), a.manager.GetSessions(scopes...))
		},
	}
	cmd.Flags().StringSliceVarP(&scopes, "scope", "s", nil, "only sessions holding this scope, repeatable")
	return cmd
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <id>",
		Short: "Exchange a session's access token for a new one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.config, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			session, err := a.manager.RefreshSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %s, expires %s\n", session.ID, formatExpiry(session.ExpiresAt))
			return nil
		},
	}
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Validate every session once and evict the invalid ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.config, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			evicted, err := a.manager.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d of %d sessions (%s)\n",
				len(evicted), len(evicted)+len(a.manager.GetSessions()), a.manager.ValidationMode())
			for _, s := range evicted {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", s.ID)
			}
			return nil
		},
	}
}

func printSessions(w io.Writer, list []sessions.Session) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No sessions")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACCOUNT\tSCOPES\tEXPIRES")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.AccountLabel, strings.Join(s.Scopes, ","), formatExpiry(s.ExpiresAt))
	}
	return tw.Flush()
}

func printEvent(w io.Writer, at time.Time, event sessions.ChangeEvent, color bool) {
	stamp := at.Format(time.RFC3339)
	printAll := func(mark string, list []sessions.Session) {
		for _, s := range list {
			fmt.Fprintf(w, "%s  %s %s (%s)\n", stamp, colorize(mark, color), s.ID, s.AccountLabel)
		}
	}
	printAll(markAdded, event.Added)
	printAll(markChanged, event.Changed)
	printAll(markRemoved, event.Removed)
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Local().Format(time.RFC3339)
}
