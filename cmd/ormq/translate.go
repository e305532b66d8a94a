package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func getCmdTranslate(gs *globalState) *cobra.Command {
	var qf queryFlags
	translateCmd := &cobra.Command{
		Use:   "translate <entity> [predicate]",
		Short: "Print the SQL of a query",
		Long: `Translate a query over an entity type into the SQL of the provider.

  The predicate is a Go expression over the entity, e.g.
  ormq translate Order 'o.Total > min' --param min=100`,
		Example: `  ormq translate -s shop.yaml -p sqlserver Customer 'c.Name == name' --param name='"Ann"' --include Orders`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := gs.environment()
			if err != nil {
				return err
			}
			built, params, err := qf.build(env.model, args[0], args[1:])
			if err != nil {
				return err
			}
			compiled, err := env.compiler.Compile(gs.ctx, built, params)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(gs.stdOut, compiled.ToQueryString())
			return err
		},
	}
	qf.register(translateCmd)
	return translateCmd
}
