package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/formportal/pkg/formengine"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

func newFormsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "forms", Short: "Inspect and check application forms"}
	cmd.AddCommand(newFormsShowCmd())
	cmd.AddCommand(newFormsValidateCmd())
	return cmd
}

func newFormsShowCmd() *cobra.Command {
	var insuranceType string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the form structure of an insurance type",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			cl, err := newClient(cmd)
			if err != nil {
				return err
			}
			structures, err := cl.FetchForms(cmd.Context(), insuranceType)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				b, err := json.MarshalIndent(structures, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(b))
			case "yaml":
				b, err := formschema.EncodeYAML(structures)
				if err != nil {
					return err
				}
				fmt.Fprint(out, string(b))
			default:
				printTree(out, structures)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&insuranceType, "type", "", "insurance type")
	mustFlag(cmd, "type")
	return cmd
}

// printTree writes one line per field, indented by group depth. Required
// fields are marked with "*", conditional ones with their rule.
func printTree(w io.Writer, structures []formschema.Structure) {
	for _, s := range structures {
		fmt.Fprintf(w, "%s (%s)\n", s.Title, s.FormID)
		printFields(w, s.Fields, 1)
	}
}

func printFields(w io.Writer, fields []formschema.Field, depth int) {
	indent := strings.Repeat("  ", depth)
	for i := range fields {
		f := &fields[i]
		line := fmt.Sprintf("%s%s\t%s\t%s", indent, f.ID, f.Type, f.Label)
		if f.Required {
			line += " *"
		}
		if v := f.Visibility; v != nil {
			line += fmt.Sprintf("\t[when %s %s %v]", v.DependsOn, v.Condition, v.Value)
		}
		if d := f.Dynamic(); d != nil {
			line += fmt.Sprintf("\t[options from %s by %s]", d.Endpoint, d.DependsOn)
		} else if len(f.Options) > 0 {
			line += "\t{" + strings.Join(f.Options, ", ") + "}"
		}
		fmt.Fprintln(w, line)
		if f.IsGroup() {
			printFields(w, f.Fields, depth+1)
		}
	}
}

func newFormsValidateCmd() *cobra.Command {
	var insuranceType, schemaFile, valuesFile string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a set of answers against a form",
		RunE: func(cmd *cobra.Command, args []string) error {
			if insuranceType == "" && schemaFile == "" {
				return errors.New("--type or --schema is required")
			}
			var structures []formschema.Structure
			if schemaFile != "" {
				data, err := os.ReadFile(filepath.Clean(schemaFile)) // #nosec G304 -- file path cleaned
				if err != nil {
					return err
				}
				if structures, err = formschema.DecodeYAML(data); err != nil {
					return err
				}
			} else {
				cl, err := newClient(cmd)
				if err != nil {
					return err
				}
				if structures, err = cl.FetchForms(cmd.Context(), insuranceType); err != nil {
					return err
				}
			}
			if _, err := formschema.Index(structures...); err != nil {
				return err
			}

			data, err := os.ReadFile(filepath.Clean(valuesFile)) // #nosec G304 -- file path cleaned
			if err != nil {
				return err
			}
			var values formschema.Values
			if err := json.Unmarshal(data, &values); err != nil {
				return fmt.Errorf("decode values: %w", err)
			}

			errs := formengine.Validate(structures, values)
			if errs.OK() {
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}
			for _, id := range errs.IDs() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, errs[id])
			}
			return errors.New(formengine.SummaryMessage)
		},
	}
	cmd.Flags().StringVar(&insuranceType, "type", "", "insurance type to fetch the form for")
	cmd.Flags().StringVar(&schemaFile, "schema", "", "read the form from a YAML file instead")
	cmd.Flags().StringVar(&valuesFile, "values", "", "JSON file with the answers")
	mustFlag(cmd, "values")
	return cmd
}
