package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ianpcook/agent-crm/internal/model"
	"github.com/ianpcook/agent-crm/internal/store"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Inspect stored extraction plans",
}

// -- plans list --

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored plans, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		sourceFlag, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.PlanFilter{Limit: limit, Offset: offset}
		if sourceFlag != "" {
			source, err := model.ParseSourceType(sourceFlag)
			if err != nil {
				return err
			}
			filter.SourceType = source
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		plans, err := st.ListPlans(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "plans list")
		}

		if len(plans) == 0 {
			fmt.Fprintln(os.Stderr, "No plans found.")
			return nil
		}

		formatPlansList(cmd.OutOrStdout(), plans)
		return nil
	},
}

// -- plans show --

var plansShowCmd = &cobra.Command{
	Use:   "show <plan-id>",
	Short: "Show a stored plan with its input",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString("format")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetPlan(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "plans show")
		}

		return writePlan(cmd.OutOrStdout(), rec, format)
	},
}

func init() {
	plansListCmd.Flags().String("source", "", "filter by source type (email, call, meeting, note)")
	plansListCmd.Flags().Int("limit", 50, "max number of plans to display")
	plansListCmd.Flags().Int("offset", 0, "number of plans to skip")

	plansShowCmd.Flags().String("format", "json", "output format (json, yaml)")

	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansShowCmd)
	rootCmd.AddCommand(plansCmd)
}

// formatPlansList writes a tabular list of plans to out.
func formatPlansList(out io.Writer, plans []model.PlanRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tCONTACTS\tACTIONS\tCREATED\tPREVIEW")
	_, _ = fmt.Fprintln(w, "--\t------\t--------\t-------\t-------\t-------")

	for _, p := range plans {
		contacts, actions := 0, 0
		if p.Plan != nil {
			contacts = len(p.Plan.Contacts.Names)
			actions = len(p.Plan.SuggestedActions)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(p.ID),
			p.SourceType,
			contacts,
			actions,
			p.CreatedAt.Format("2006-01-02 15:04"),
			preview(p.Input, 40),
		)
	}
	_ = w.Flush()
}

// preview returns the first line of s, cut to n runes.
func preview(s string, n int) string {
	for i, r := range s {
		if r == '\n' || r == '\r' {
			s = s[:i]
			break
		}
	}
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n-3]) + "..."
	}
	return s
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
