package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/packkeeper/internal/rules"
)

var validateCmd = &cobra.Command{
	Use:   "validate RULES_FILE",
	Short: "Check a rule set file without running it",
	Long: `Validate reports problems in a rule set file. Errors mark rules, steps,
conditions or actions that are dropped at runtime; warnings mark rules that run
but probably not as intended. Exits non-zero when any error is found.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringSlice("columns", nil, "dataset columns; fields outside them are reported")
}

func runValidate(cmd *cobra.Command, args []string) error {
	rs, err := readRuleSetFile(args[0])
	if err != nil {
		return err
	}

	var columns []string
	if cmd.Flags().Changed("columns") {
		columns, _ = cmd.Flags().GetStringSlice("columns")
		for i := range columns {
			columns[i] = strings.TrimSpace(columns[i])
		}
	}

	issues := rules.Validate(rs.Rules, columns)
	out := cmd.OutOrStdout()
	for _, issue := range issues {
		fmt.Fprintln(out, issue.String())
	}
	if rules.HasErrors(issues) {
		return fmt.Errorf("%s: rule set has errors", args[0])
	}
	fmt.Fprintf(out, "%s: %d rules, %d warnings\n", args[0], len(rs.Rules), len(issues))
	return nil
}
