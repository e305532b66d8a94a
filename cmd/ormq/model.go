package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

func getCmdModel(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Print the entity types of the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := gs.environment()
			if err != nil {
				return err
			}
			return printModel(gs.stdOut, env.model)
		},
	}
}

func printModel(w io.Writer, model *metadata.Model) error {
	var b strings.Builder
	for _, et := range model.EntityTypes() {
		b.WriteString(et.Name())
		switch {
		case et.IsOwned():
			fmt.Fprintf(&b, " owned by %s.%s", et.Owner().Name(), et.OwnerNavigation())
		case et.Table() != "":
			fmt.Fprintf(&b, " -> %s", et.Table())
		}
		if t, ok := et.Temporal(); ok {
			fmt.Fprintf(&b, " (temporal, history %s)", t.HistoryTable)
		}
		b.WriteString("\n")
		for _, p := range et.Properties() {
			fmt.Fprintf(&b, "  %s %s", p.Name(), p.TypeName())
			if m := p.TypeMapping(); m != nil {
				fmt.Fprintf(&b, " %s", m.StoreType)
			}
			if p.IsKey() {
				b.WriteString(" key")
			}
			if p.IsNullable() {
				b.WriteString(" null")
			}
			if p.IsShadow() {
				b.WriteString(" shadow")
			}
			b.WriteString("\n")
		}
		for _, n := range et.Navigations() {
			target := n.TargetType().Name()
			if n.IsCollection() {
				target = "[]" + target
			}
			fmt.Fprintf(&b, "  %s -> %s\n", n.Name(), target)
		}
	}
	if fks := model.ForeignKeys(); len(fks) > 0 {
		b.WriteString("\nrelationships:\n")
		for _, fk := range fks {
			fmt.Fprintf(&b, "  %s\n", fk)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
