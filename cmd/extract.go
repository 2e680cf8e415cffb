package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ianpcook/agent-crm/internal/extract"
	"github.com/ianpcook/agent-crm/internal/model"
)

var extractCmd = &cobra.Command{
	Use:   "extract [text]",
	Short: "Extract a CRM plan from an email, note or call summary",
	Long:  "Reads text from the argument, --file or stdin and prints the extraction plan. Nothing is written to the CRM; --save keeps the plan for a later apply.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		sourceFlag, _ := cmd.Flags().GetString("source")
		format, _ := cmd.Flags().GetString("format")
		save, _ := cmd.Flags().GetBool("save")

		source, err := model.ParseSourceType(sourceFlag)
		if err != nil {
			return err
		}
		if format != "json" && format != "yaml" {
			return eris.Errorf("unknown format %q (want json or yaml)", format)
		}

		raw, err := readInput(args, file, cmd.InOrStdin())
		if err != nil {
			return err
		}
		text := extract.Normalize(raw)
		if err := extract.ValidateInput(text); err != nil {
			return err
		}

		plan := extract.Extract(text, source)

		if save {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			rec, err := st.SavePlan(ctx, text, plan)
			if err != nil {
				return eris.Wrap(err, "extract: save plan")
			}
			zap.L().Info("plan saved",
				zap.String("plan_id", rec.ID),
				zap.String("source_type", string(plan.SourceType)),
				zap.Int("actions", len(plan.SuggestedActions)),
			)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "plan saved: %s\n", rec.ID)
		}

		return writePlan(cmd.OutOrStdout(), plan, format)
	},
}

func init() {
	extractCmd.Flags().StringP("file", "f", "", "read text from file (- for stdin)")
	extractCmd.Flags().StringP("source", "s", "auto", "source type (auto, email, call, meeting, note)")
	extractCmd.Flags().String("format", "json", "output format (json, yaml)")
	extractCmd.Flags().Bool("save", false, "store the plan for review")
	rootCmd.AddCommand(extractCmd)
}

// readInput returns the text to extract from: the positional argument,
// the named file, or stdin.
func readInput(args []string, file string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		if file != "" {
			return "", eris.New("pass text or --file, not both")
		}
		return args[0], nil
	}

	if file != "" && file != "-" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", eris.Wrapf(err, "read %s", file)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", eris.Wrap(err, "read stdin")
	}
	return string(data), nil
}

// writePlan renders v as indented JSON or YAML. YAML keys follow the JSON
// field names.
func writePlan(w io.Writer, v any, format string) error {
	if format == "yaml" {
		data, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "marshal plan")
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return eris.Wrap(err, "decode plan")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}
