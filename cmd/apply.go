package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ianpcook/agent-crm/internal/apply"
	"github.com/ianpcook/agent-crm/internal/config"
	"github.com/ianpcook/agent-crm/internal/model"
	"github.com/ianpcook/agent-crm/internal/store"
)

var applyCmd = &cobra.Command{
	Use:   "apply <plan-id|plan.json>",
	Short: "Execute reviewer-accepted actions of a plan",
	Long:  "Runs the suggested actions selected with --accept against the local CRM or Salesforce. Logging an interaction needs --summary.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		acceptFlag, _ := cmd.Flags().GetString("accept")
		summary, _ := cmd.Flags().GetString("summary")
		reason, _ := cmd.Flags().GetString("reason")
		sinkName, _ := cmd.Flags().GetString("sink")
		format, _ := cmd.Flags().GetString("format")
		if sinkName == "" {
			sinkName = cfg.Apply.DefaultSink
		}

		var st store.Store
		if sinkName == config.SinkLocal || !isPlanFile(args[0]) {
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		planID, plan, input, err := loadPlan(ctx, st, args[0])
		if err != nil {
			return err
		}

		accept, err := apply.ParseAccept(acceptFlag, len(plan.SuggestedActions))
		if err != nil {
			return err
		}
		if len(accept) == 0 {
			return eris.New("nothing to apply: pass --accept with action indices or \"all\"")
		}

		sink, err := initSink(sinkName, st)
		if err != nil {
			return err
		}

		res, err := apply.NewExecutor(sink).Apply(ctx, apply.Request{
			PlanID:  planID,
			Plan:    plan,
			Input:   input,
			Accept:  accept,
			Summary: summary,
			Reason:  reason,
		})
		if err != nil {
			return err
		}

		zap.L().Info("plan applied",
			zap.String("plan_id", planID),
			zap.String("sink", res.Sink),
			zap.Int("applied", res.Applied),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped),
		)

		if err := writePlan(cmd.OutOrStdout(), res, format); err != nil {
			return err
		}
		if res.Failed > 0 {
			return eris.Errorf("apply: %d of %d accepted actions failed", res.Failed, res.Failed+res.Applied)
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().String("accept", "", `comma-separated action indices to execute, or "all"`)
	applyCmd.Flags().String("summary", "", "reviewer summary for log_interaction")
	applyCmd.Flags().String("reason", "", "reason recorded in the audit log (default: plan <id>)")
	applyCmd.Flags().String("sink", "", "where to write: local or salesforce (default from config)")
	applyCmd.Flags().String("format", "json", "output format (json, yaml)")
	rootCmd.AddCommand(applyCmd)
}

func isPlanFile(ref string) bool {
	if strings.HasSuffix(ref, ".json") {
		return true
	}
	info, err := os.Stat(ref)
	return err == nil && !info.IsDir()
}

// loadPlan resolves ref to a plan: a JSON file holding either a stored plan
// record or a bare plan, or otherwise a stored plan ID.
func loadPlan(ctx context.Context, st store.Store, ref string) (id string, plan *model.ExtractionPlan, input string, err error) {
	if isPlanFile(ref) {
		data, err := os.ReadFile(ref)
		if err != nil {
			return "", nil, "", eris.Wrapf(err, "read plan %s", ref)
		}
		return decodePlan(data)
	}

	if st == nil {
		return "", nil, "", eris.New("no store to load the plan from")
	}
	rec, err := st.GetPlan(ctx, ref)
	if err != nil {
		return "", nil, "", eris.Wrapf(err, "load plan %s", ref)
	}
	return rec.ID, rec.Plan, rec.Input, nil
}

func decodePlan(data []byte) (string, *model.ExtractionPlan, string, error) {
	var rec model.PlanRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", nil, "", eris.Wrap(err, "decode plan")
	}
	if rec.Plan != nil {
		return rec.ID, rec.Plan, rec.Input, nil
	}

	var plan model.ExtractionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return "", nil, "", eris.Wrap(err, "decode plan")
	}
	if len(plan.SuggestedActions) == 0 {
		return "", nil, "", eris.New("decode plan: no suggested actions")
	}
	return "", &plan, "", nil
}
