package cli

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	optionstore "github.com/dalemusser/pilitosync/internal/app/store/options"
	"github.com/dalemusser/pilitosync/internal/app/system/options"
	"github.com/dalemusser/pilitosync/internal/app/system/pilito"
	"github.com/dalemusser/pilitosync/internal/domain/models"
	"github.com/spf13/cobra"
)

func newOptionsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Read and write console options",
	}
	cmd.AddCommand(
		newOptionsGetCmd(g),
		newOptionsSetCmd(g),
		newOptionsUnsetCmd(g),
		newOptionsListCmd(g),
		newOptionsRecordsCmd(g),
	)
	return cmd
}

func newOptionsGetCmd(g *globals) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print one option value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			return g.withOptions(ctx, func(svc *options.Service) error {
				v, err := svc.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printOptions(cmd, g, map[string]any{args[0]: display(args[0], v, reveal)})
			})
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the API token in full")
	return cmd
}

func newOptionsSetCmd(g *globals) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Sanitize and store one option value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			return g.withOptions(ctx, func(svc *options.Service) error {
				stored, err := svc.Set(ctx, args[0], args[1], by)
				if err != nil {
					return err
				}
				return printOptions(cmd, g, map[string]any{args[0]: display(args[0], stored, false)})
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "pilitoctl", "Recorded as the option's updater")
	return cmd
}

func newOptionsUnsetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <name>",
		Short: "Remove a stored value so the option reads its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			return g.withOptions(ctx, func(svc *options.Service) error {
				if err := svc.Unset(ctx, args[0]); err != nil {
					return err
				}
				v, err := svc.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printOptions(cmd, g, map[string]any{args[0]: display(args[0], v, false)})
			})
		},
	}
}

func newOptionsListCmd(g *globals) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every Pilito option",
		Long:  "Print every Pilito option. With --offline the declared defaults are shown without touching MongoDB.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			list := func(svc *options.Service) error {
				vals, err := svc.Group(ctx, models.PilitoSettingsGroup)
				if err != nil {
					return err
				}
				for name, v := range vals {
					vals[name] = display(name, v, false)
				}
				return printOptions(cmd, g, vals)
			}
			if offline {
				return list(newOptionService(options.NewMemoryBackend()))
			}
			return g.withOptions(ctx, list)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Show declared defaults only")
	return cmd
}

func newOptionsRecordsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "Show stored Pilito options with who last changed them",
		Long:  "Show the Pilito options that have a stored value. Options still at their default are not listed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			return g.withStore(ctx, func(store *optionstore.Store) error {
				recs, err := store.ListGroup(ctx, models.PilitoSettingsGroup)
				if err != nil {
					return err
				}
				return printRecords(cmd, g, recs)
			})
		},
	}
}

func printRecords(cmd *cobra.Command, g *globals, recs []models.OptionRecord) error {
	for i := range recs {
		recs[i].Value = display(recs[i].Name, recs[i].Value, false)
	}
	out := cmd.OutOrStdout()
	if g.jsonOutput {
		return writeJSON(out, recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "No stored options.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVALUE\tUPDATED\tBY")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%v\t%s\t%s\n",
			r.Name, r.Value, r.UpdatedAt.Local().Format(time.DateTime), r.UpdatedBy)
	}
	return tw.Flush()
}

// display redacts the API token unless reveal is set.
func display(name string, v any, reveal bool) any {
	if name != models.OptionAPIToken || reveal {
		return v
	}
	s, _ := v.(string)
	return pilito.Redact(s)
}

func printOptions(cmd *cobra.Command, g *globals, vals map[string]any) error {
	out := cmd.OutOrStdout()
	if g.jsonOutput {
		return writeJSON(out, vals)
	}
	names := make([]string, 0, len(vals))
	for n := range vals {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(out, "%s = %v\n", n, vals[n])
	}
	return nil
}
