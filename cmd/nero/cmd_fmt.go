package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nero/internal/script"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [file]",
	Short: "Print a script in canonical form",
	Long: `Parses a script and prints it back canonically: definitions, transient
declarations, axioms, then rules.`,
	Args: cobra.ExactArgs(1),
	RunE: runFmt,
}

func runFmt(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	rs, err := script.Parse(string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	out, err := script.FormatRuleSet(rs)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
