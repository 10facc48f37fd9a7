package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meddoc/internal/classifier"
	"meddoc/internal/taxonomy"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify <file>",
		Short: "Classify a file without indexing or moving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if info, err := os.Stat(path); err != nil {
				return err
			} else if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := ctx.catalog()
			if err != nil {
				return fmt.Errorf("load taxonomy: %w", err)
			}
			client := classifier.NewClient(classifier.FromConfig(cfg.GetClassifier()),
				classifier.WithCategories(catalog.PromptHint()),
				classifier.WithLogger(ctx.log()),
			)
			result, err := client.Classify(cmd.Context(), path)
			if err != nil {
				return err
			}
			placement := taxonomy.NewValidator(catalog).ResolveComposite(result.CategorySlug)

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"doc_type":             result.DocType,
					"vendor":               result.Vendor,
					"model":                result.Model,
					"category_slug":        placement.Category,
					"group_slug":           placement.Group,
					"summary":              result.Summary,
					"confidence":           result.Confidence,
					"confidence_estimated": result.ConfidenceEstimated,
					"fallback":             result.Fallback,
					"corrected":            placement.Corrected,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Doc type:    %s (%s)\n", taxonomy.DocTypeLabel(result.DocType), result.DocType)
			fmt.Fprintf(out, "Vendor:      %s\n", result.Vendor)
			fmt.Fprintf(out, "Model:       %s\n", result.Model)
			fmt.Fprintf(out, "Placement:   %s\n", placement.Key())
			if placement.Corrected {
				fmt.Fprintf(out, "             (corrected from %q)\n", result.CategorySlug)
			}
			fmt.Fprintf(out, "Summary:     %s\n", result.Summary)
			confidence := fmt.Sprintf("%.2f", result.Confidence)
			if result.ConfidenceEstimated {
				confidence += " (estimated)"
			}
			fmt.Fprintf(out, "Confidence:  %s\n", confidence)
			if result.Fallback {
				fmt.Fprintln(out, "Note:        classifier answer was unusable; fallback values shown")
			}
			return nil
		},
	}
	bindJSONFlag(cmd, &asJSON)
	return cmd
}
