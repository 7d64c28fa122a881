package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nero/internal/crosscheck"
	"nero/internal/fact"
	"nero/internal/logging"
	"nero/internal/script"
)

var (
	checkSchema     string
	checkCrosscheck bool
	checkFacts      []string
)

var checkCmd = &cobra.Command{
	Use:   "check [script]",
	Short: "Validate a script and print its strata",
	Long: `Parses a script, runs the safety and shape checks, stratifies it and
prints one line per stratum. With --schema the rule set's output shapes must
match the define statements of the schema file. With --crosscheck the script
is also evaluated by Google Mangle and the two results are compared.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	engine := newEngine(nil)
	rs, err := engine.Parse(string(src))
	if err != nil {
		return err
	}
	strata, err := rs.Strata()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %d axioms, %d rules\n", args[0], len(rs.Axioms()), len(rs.Rules()))
	for i, level := range strata.Levels {
		fmt.Fprintf(w, "stratum %d: %s\n", i, strings.Join(level, ", "))
	}

	if checkSchema != "" {
		text, err := os.ReadFile(checkSchema)
		if err != nil {
			return fmt.Errorf("failed to read schema: %w", err)
		}
		schema, err := script.ParseSchema(string(text))
		if err != nil {
			return fmt.Errorf("%s: %w", checkSchema, err)
		}
		if err := rs.OutputSchema().Check(schema); err != nil {
			return err
		}
		fmt.Fprintln(w, "schema: ok")
	}

	if !checkCrosscheck {
		return nil
	}
	facts, err := readFactFiles(checkFacts)
	if err != nil {
		return err
	}
	res, err := engine.With(rs).Evaluate(fact.NewStore(facts...))
	if err != nil {
		return err
	}
	checker := crosscheck.NewChecker(logging.For(logger, cfg.Logging, logging.CategoryCrosscheck))
	diff, err := checker.Check(rs, facts, res.Known)
	if errors.Is(err, crosscheck.ErrUnsupported) {
		fmt.Fprintf(w, "crosscheck: skipped (%v)\n", err)
		return nil
	}
	if err != nil {
		return err
	}
	if !diff.Empty() {
		fmt.Fprint(w, diff.String())
		return fmt.Errorf("crosscheck: %d missing, %d extra facts", len(diff.Missing), len(diff.Extra))
	}
	fmt.Fprintln(w, "crosscheck: ok")
	return nil
}
