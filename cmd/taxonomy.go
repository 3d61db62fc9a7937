package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/classify-cli/internal/taxonomy"
)

var taxonomyFile string

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Inspect taxonomy documents",
}

var taxonomyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that a taxonomy document is well-formed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tree, err := taxonomy.LoadFile(taxonomyFile, cfg.Taxonomy.MaxDepth)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (%d lines, max depth %d)\n",
			taxonomyFile, len(tree.Render()), tree.MaxDepth())
		return nil
	},
}

var taxonomyRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the instruction block a taxonomy renders to",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tree, err := taxonomy.LoadFile(taxonomyFile, cfg.Taxonomy.MaxDepth)
		if err != nil {
			return err
		}
		if tree.Empty() {
			return eris.Errorf("taxonomy: %s has no categories", taxonomyFile)
		}
		for _, line := range tree.Render() {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	taxonomyCmd.PersistentFlags().StringVar(&taxonomyFile, "file", "", "taxonomy JSON/YAML file (required)")
	_ = taxonomyCmd.MarkPersistentFlagRequired("file")
	taxonomyCmd.AddCommand(taxonomyValidateCmd)
	taxonomyCmd.AddCommand(taxonomyRenderCmd)
	rootCmd.AddCommand(taxonomyCmd)
}
