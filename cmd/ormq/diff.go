package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"gopkg.in/guregu/null.v3"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/config"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
)

var clauseKeywords = []string{" FROM ", " LEFT JOIN ", " INNER JOIN ", " WHERE ", " ORDER BY ", " GROUP BY ", " LIMIT ", " OFFSET ", " FOR SYSTEM_TIME "}

func getCmdDiff(gs *globalState) *cobra.Command {
	var qf queryFlags
	var against string
	diffCmd := &cobra.Command{
		Use:   "diff <entity> [predicate]",
		Short: "Compare the SQL of a query on two providers",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := gs.environment()
			if err != nil {
				return err
			}
			other, err := env.cfg.Apply(config.Config{Provider: null.StringFrom(against)}).NewProvider()
			if err != nil {
				return err
			}
			model, err := loadModel(env.cfg, other, gs)
			if err != nil {
				return err
			}
			left, err := translate(gs, env.model, env.compiler, &qf, args)
			if err != nil {
				return err
			}
			right, err := translate(gs, model, query.NewCompiler(model, other, env.cfg.CompilerOptions(gs.logger)...), &qf, args)
			if err != nil {
				return err
			}
			return printDiff(gs.stdOut, left, right)
		},
	}
	qf.register(diffCmd)
	diffCmd.Flags().StringVar(&against, "against", "postgresql", "provider to compare with")
	return diffCmd
}

func translate(gs *globalState, model *metadata.Model, compiler *query.Compiler, qf *queryFlags, args []string) (string, error) {
	built, params, err := qf.build(model, args[0], args[1:])
	if err != nil {
		return "", err
	}
	compiled, err := compiler.Compile(gs.ctx, built, params)
	if err != nil {
		return "", err
	}
	return breakClauses(compiled.SQL), nil
}

// breakClauses puts every clause of sql on its own line.
func breakClauses(sql string) string {
	for _, kw := range clauseKeywords {
		sql = strings.ReplaceAll(sql, kw, "\n"+strings.TrimPrefix(kw, " "))
	}
	return sql + "\n"
}

func printDiff(w io.Writer, left, right string) error {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(left, right)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line != "" {
				out.WriteString(prefix + line)
			}
		}
	}
	_, err := fmt.Fprint(w, out.String())
	return err
}
