package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dalemusser/pilitosync/internal/app/store/audit"
	"github.com/spf13/cobra"
)

func newAuditCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect audit events",
	}
	cmd.AddCommand(newAuditRecentCmd(g))
	return cmd
}

func newAuditRecentCmd(g *globals) *cobra.Command {
	var (
		f     audit.Filter
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Print the newest audit events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()

			client, db, err := g.connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = client.Disconnect(context.Background()) }()

			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			events, err := audit.New(db).Query(ctx, f)
			if err != nil {
				return err
			}
			return printEvents(cmd, g, events)
		},
	}
	cmd.Flags().StringVar(&f.Category, "category", "", "Only this category (auth, admin)")
	cmd.Flags().StringVar(&f.EventType, "event", "", "Only this event type")
	cmd.Flags().StringVar(&f.LoginID, "login", "", "Only events for this login ID")
	cmd.Flags().Int64Var(&f.Limit, "limit", 20, "Maximum number of events")
	cmd.Flags().DurationVar(&since, "since", 0, "Only events newer than this (e.g. 24h)")
	return cmd
}

func printEvents(cmd *cobra.Command, g *globals, events []audit.Event) error {
	out := cmd.OutOrStdout()
	if g.jsonOutput {
		return writeJSON(out, events)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCATEGORY\tEVENT\tLOGIN\tOK\tREASON")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Category, e.EventType, e.LoginID, e.Success, e.FailureReason)
	}
	return tw.Flush()
}
