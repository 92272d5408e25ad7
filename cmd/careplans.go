package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/careplan-cli/internal/careplan"
	"github.com/sells-group/careplan-cli/internal/model"
	"github.com/sells-group/careplan-cli/internal/store"
)

var carePlansCmd = &cobra.Command{
	Use:   "careplans",
	Short: "Inspect stored care plans",
}

// -- careplans list --

var carePlansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent care plans",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		rows, err := careplan.NewService(st, &careplan.TemplateDrafter{}, nil).List(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "careplans list")
		}

		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No care plans found.")
			return nil
		}

		formatCarePlans(cmd.OutOrStdout(), rows)
		return nil
	},
}

// -- careplans show --

var carePlansShowCmd = &cobra.Command{
	Use:   "show <care-plan-id>",
	Short: "Show a care plan with its order, patient and provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		detail, err := st.GetCarePlan(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "careplans show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

func formatCarePlans(out io.Writer, rows []model.CarePlanRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPATIENT\tMRN\tPROVIDER\tMEDICATION\tDATE")
	_, _ = fmt.Fprintln(w, "--\t-------\t---\t--------\t----------\t----")

	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			truncate(r.PatientName, 30),
			r.MRN,
			truncate(r.Provider, 30),
			truncate(r.Medication, 24),
			r.Date,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func init() {
	carePlansListCmd.Flags().Int("limit", store.DefaultListLimit, "maximum care plans to list")
	carePlansCmd.AddCommand(carePlansListCmd, carePlansShowCmd)
	rootCmd.AddCommand(carePlansCmd)
}
