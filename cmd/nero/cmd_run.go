package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nero/internal/fact"
	"nero/internal/metrics"
	"nero/internal/script"
)

var (
	runFacts []string
	runParms []string
	runDebug bool
	runAll   bool
)

// runCmd evaluates scripts
var runCmd = &cobra.Command{
	Use:   "run [script...]",
	Short: "Evaluate scripts and print the inferred facts",
	Long: `Evaluates every script against the facts of --facts files and prints
the facts its rules infer, as Nero axioms. Scripts are independent and are
evaluated concurrently; output keeps the argument order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScripts,
}

// runOptions are the inputs shared by every script of one invocation.
type runOptions struct {
	facts []fact.Fact
	parms map[string]interface{}
	debug bool
	all   bool
}

func runScripts(cmd *cobra.Command, args []string) error {
	facts, err := readFactFiles(runFacts)
	if err != nil {
		return err
	}
	parms, err := parseParms(runParms)
	if err != nil {
		return err
	}
	opts := runOptions{facts: facts, parms: parms, debug: runDebug || cfg.Engine.Debug, all: runAll}

	outputs := make([]string, len(args))
	var g errgroup.Group
	g.SetLimit(cfg.Engine.Concurrency)
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			out, err := evaluateFile(path, opts, nil)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for i, out := range outputs {
		if len(args) > 1 {
			fmt.Fprintf(w, "// %s\n", args[i])
		}
		fmt.Fprint(w, out)
	}
	return nil
}

// evaluateFile runs one script with its own engine and renders the result.
func evaluateFile(path string, opts runOptions, m *metrics.Metrics) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	engine := newEngine(m)
	rs, err := engine.Parse(string(src))
	if err != nil {
		return "", err
	}
	p := engine.With(rs).Debug(opts.debug).QueryParms(opts.parms)

	if opts.all {
		res, err := p.Evaluate(fact.NewStore(opts.facts...))
		if err != nil {
			return "", err
		}
		logger.Debug("script evaluated", zap.String("path", path), zap.Int("known", res.Known.Len()))
		return script.FormatStore(res.Known)
	}
	inferred, err := p.Query(opts.facts...)
	if err != nil {
		return "", err
	}
	logger.Debug("script evaluated", zap.String("path", path), zap.Int("inferred", len(inferred)))
	return script.FormatFacts(inferred)
}

// readFactFiles parses fact files; each must hold axioms only.
func readFactFiles(paths []string) ([]fact.Fact, error) {
	var out []fact.Fact
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read facts: %w", err)
		}
		facts, err := script.ParseFacts(string(src))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, facts...)
	}
	return out, nil
}

// parseParms reads name=value pairs. A value that parses as a Nero constant
// keeps its type; anything else is a string.
func parseParms(pairs []string) (map[string]interface{}, error) {
	parms := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || !fact.ValidKeyword(name) {
			return nil, fmt.Errorf("invalid query parameter %q, want name=value", pair)
		}
		parms[name] = parseValue(value)
	}
	return parms, nil
}

func parseValue(text string) fact.Value {
	facts, err := script.ParseFacts("parm(" + text + ");")
	if err != nil || len(facts) != 1 || facts[0].Arity() != 1 {
		return fact.String(text)
	}
	return facts[0].Fields[0]
}
