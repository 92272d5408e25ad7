package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/careplan-cli/internal/careplan"
	"github.com/sells-group/careplan-cli/internal/model"
)

var attributeCmd = &cobra.Command{
	Use:   "attribute",
	Short: "Generate source attribution for a care plan",
	Long: "Maps every statement of a care plan to its supporting sources. Reads the care plan and patient record " +
		"from files (use - for stdin), or attributes a stored care plan with --id.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("attribute"); err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format != "json" && format != "yaml" {
			return eris.Errorf("attribute: unknown format %q", format)
		}

		gen, err := initGenerator(cfg, nil)
		if err != nil {
			return err
		}

		var result *model.SourceAttribution
		if id, _ := cmd.Flags().GetString("id"); id != "" {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}

			svc := careplan.NewService(st, &careplan.TemplateDrafter{}, gen)
			result, err = svc.Attribute(ctx, id)
			if err != nil {
				return eris.Wrap(err, "attribute")
			}
		} else {
			planPath, _ := cmd.Flags().GetString("plan")
			recordPath, _ := cmd.Flags().GetString("record")
			if planPath == "" {
				return eris.New("attribute: --plan or --id is required")
			}

			plan, err := readInput(cmd.InOrStdin(), planPath)
			if err != nil {
				return err
			}
			record := ""
			if recordPath != "" {
				if record, err = readInput(cmd.InOrStdin(), recordPath); err != nil {
					return err
				}
			}

			result, err = gen.Generate(ctx, plan, record)
			if err != nil {
				return eris.Wrap(err, "attribute")
			}
		}

		return writeAttribution(cmd.OutOrStdout(), result, format)
	},
}

// readInput reads a whole file, or stdin when path is "-".
func readInput(stdin io.Reader, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", eris.Wrapf(err, "read %s", path)
	}
	return string(b), nil
}

func writeAttribution(out io.Writer, a *model.SourceAttribution, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(a)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

func init() {
	attributeCmd.Flags().String("plan", "", "care plan text file (- for stdin)")
	attributeCmd.Flags().String("record", "", "patient record text file (- for stdin)")
	attributeCmd.Flags().String("id", "", "stored care plan id to attribute and save")
	attributeCmd.Flags().String("format", "json", "output format: json or yaml")
	rootCmd.AddCommand(attributeCmd)
}
