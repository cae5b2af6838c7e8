package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/styledmap/smp/pkg/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate <archive>",
	Short: "Run the layered integrity audit against an SMP archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	report := validator.ValidatePath(path)

	for _, w := range report.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
	}

	if !report.Valid {
		return fmt.Errorf("%s failed validation (%d error(s))", path, len(report.Errors))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
	return nil
}
