package conventions

import (
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

// TableConvention applies configured table names and discriminators.
type TableConvention struct{}

func (TableConvention) Name() string {
	return "TableConvention"
}

func (TableConvention) ProcessModelFinalizing(ctx *BuildContext) error {
	for _, et := range ctx.Model.EntityTypes() {
		if table, ok := ctx.Configuration.FindTable(et.ShortName()); ok && !et.IsOwned() {
			et.SetTable(table)
		}
		if d, ok := ctx.Configuration.FindDiscriminator(et.ShortName()); ok {
			et.SetDiscriminator(d)
		}
	}
	return nil
}

// TemporalConvention marks configured types as system-versioned and adds the
// period columns as shadow properties.
type TemporalConvention struct{}

func (TemporalConvention) Name() string {
	return "TemporalConvention"
}

func (TemporalConvention) ProcessModelFinalizing(ctx *BuildContext) error {
	for _, et := range ctx.Model.EntityTypes() {
		if et.IsOwned() {
			continue
		}
		table, ok := ctx.Configuration.FindTemporal(et.ShortName())
		if !ok {
			continue
		}
		if table.PeriodStart == "" {
			table.PeriodStart = "PeriodStart"
		}
		if table.PeriodEnd == "" {
			table.PeriodEnd = "PeriodEnd"
		}
		if table.HistoryTable == "" {
			table.HistoryTable = et.Table() + "History"
		}
		et.SetTemporal(table)
		for _, name := range []string{table.PeriodStart, table.PeriodEnd} {
			if et.FindProperty(name) != nil {
				continue
			}
			if _, err := et.AddProperty(name, metadata.TypeTime, false, true, metadata.Convention); err != nil {
				return err
			}
		}
	}
	return nil
}

// TypeMappingConvention binds every property to a store type.
type TypeMappingConvention struct{}

func (TypeMappingConvention) Name() string {
	return "TypeMappingConvention"
}

func (TypeMappingConvention) ProcessModelFinalizing(ctx *BuildContext) error {
	if ctx.Mappings == nil {
		return nil
	}
	for _, et := range ctx.Model.EntityTypes() {
		for _, p := range et.Properties() {
			if p.TypeMapping() != nil {
				continue
			}
			m := ctx.Mappings.FindMapping(p.TypeName())
			if m == nil {
				ctx.Report(errors.Errorf("no store type mapping for %s.%s of type %q", et.Name(), p.Name(), p.TypeName()))
				continue
			}
			p.SetTypeMapping(m)
		}
	}
	return nil
}
