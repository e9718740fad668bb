package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jrsteele09/tidal-mcp/sessions"
	"github.com/spf13/cobra"
)

func newSessionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and remove stored TIDAL sessions",
	}

	var offline bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Long: `list validates every stored session against TIDAL and prints its user.
With --offline only the stored credentials are read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if offline {
				return c.listStored(cmd.OutOrStdout())
			}
			return c.listValidated(cmd.Context(), cmd.OutOrStdout())
		},
	}
	listCmd.Flags().BoolVar(&offline, "offline", false, "do not contact TIDAL")

	deleteCmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.deleteSession(cmd.OutOrStdout(), args[0])
		},
	}

	cmd.AddCommand(listCmd, deleteCmd)
	return cmd
}

func (c *cli) listValidated(ctx context.Context, out io.Writer) error {
	a, err := newApp(c.config, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	manager, err := a.newManager(nil)
	if err != nil {
		return err
	}
	infos, err := manager.ListActiveSessions(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTATUS\tUSER ID\tUSERNAME\tEMAIL")
	for _, info := range infos {
		user := sessions.UserInfo{ID: "-", Username: "-", Email: "-"}
		if info.User != nil {
			user = *info.User
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", info.SessionID, info.Status, user.ID, user.Username, user.Email)
	}
	return w.Flush()
}

func (c *cli) listStored(out io.Writer) error {
	a, err := newApp(c.config, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := a.store.ListIDs()
	if err != nil {
		return err
	}

	now := time.Now()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tTOKEN\tREFRESHABLE\tEXPIRES")
	for _, id := range ids {
		bundle, err := a.store.Load(id)
		if err != nil {
			fmt.Fprintf(w, "%s\tunreadable\t-\t-\n", id)
			continue
		}
		expires := "unknown"
		if !bundle.ExpiryTime.IsZero() {
			expires = humanize.RelTime(bundle.ExpiryTime, now, "ago", "from now")
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", id, bundle.TokenType, bundle.RefreshToken != "", expires)
	}
	return w.Flush()
}

func (c *cli) deleteSession(out io.Writer, sessionID string) error {
	a, err := newApp(c.config, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Delete(sessionID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted session %s\n", sessionID)
	return nil
}
