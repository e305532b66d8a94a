package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/config"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata/conventions"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/goexpr"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
)

var errNoSchema = errors.New("a schema is required, use --schema or ASCETIC_ORM_SCHEMA")

// environment is what a subcommand works with once the config is
// consolidated.
type environment struct {
	cfg      config.Config
	provider query.Provider
	model    *metadata.Model
	compiler *query.Compiler
}

func (gs *globalState) environment() (*environment, error) {
	cfg, err := gs.consolidatedConfig()
	if err != nil {
		return nil, err
	}
	provider, err := cfg.NewProvider()
	if err != nil {
		return nil, err
	}
	model, err := loadModel(cfg, provider, gs)
	if err != nil {
		return nil, err
	}
	return &environment{
		cfg:      cfg,
		provider: provider,
		model:    model,
		compiler: query.NewCompiler(model, provider, cfg.CompilerOptions(gs.logger)...),
	}, nil
}

func loadModel(cfg config.Config, provider query.Provider, gs *globalState) (*metadata.Model, error) {
	if cfg.Schema.String == "" {
		return nil, errNoSchema
	}
	schema, err := metadata.LoadSchemaFile(cfg.Schema.String)
	if err != nil {
		return nil, err
	}
	catalog, err := schema.Catalog()
	if err != nil {
		return nil, err
	}
	convs := conventions.DefaultConventions()
	if provider.Name() == "cosmos" {
		convs = conventions.CosmosConventions()
	}
	if !provider.Dialect().SupportsTemporal() {
		// period columns exist only where the store versions the tables
		filtered := convs[:0]
		for _, c := range convs {
			if _, ok := c.(conventions.TemporalConvention); !ok {
				filtered = append(filtered, c)
			}
		}
		convs = filtered
	}
	return conventions.NewModelBuilder(provider.TypeMappingSource(), nil, gs.logger).
		Build(catalog, schema.Configuration(), convs...)
}

type queryFlags struct {
	params      map[string]string
	includes    []string
	orderBy     []string
	orderByDesc []string
	skip        int
	take        int
	tracking    string
	asOf        string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringToStringVar(&f.params, "param", nil, "parameter values as JSON literals, name=value")
	flags.StringSliceVar(&f.includes, "include", nil, "navigation paths to load, dotted")
	flags.StringSliceVar(&f.orderBy, "order-by", nil, "properties to order by")
	flags.StringSliceVar(&f.orderByDesc, "order-by-desc", nil, "properties to order by descending")
	flags.IntVar(&f.skip, "skip", 0, "rows to skip")
	flags.IntVar(&f.take, "take", 0, "rows to take")
	flags.StringVar(&f.tracking, "tracking", "all", "all, none or identity")
	flags.StringVar(&f.asOf, "as-of", "", "point in time of a temporal query, RFC 3339")
}

// parameters reads each value as a JSON literal, falling back to the raw
// string.
func (f *queryFlags) parameters() map[string]any {
	params := make(map[string]any, len(f.params))
	for name, raw := range f.params {
		if gjson.Valid(raw) {
			params[name] = gjson.Parse(raw).Value()
			continue
		}
		params[name] = raw
	}
	return params
}

// build makes the query over entityName. args holds the optional Go
// predicate.
func (f *queryFlags) build(model *metadata.Model, entityName string, args []string) (*q.Query, map[string]any, error) {
	et := model.FindEntityType(entityName)
	if et == nil {
		return nil, nil, errors.Errorf("unknown entity type %q", entityName)
	}
	params := f.parameters()
	b := q.From(et)
	if len(args) > 0 {
		predicate, err := goexpr.Parse(args[0], params)
		if err != nil {
			return nil, nil, err
		}
		b = b.Where(predicate)
	}
	for _, path := range f.includes {
		b = b.Include(strings.Split(path, ".")...)
	}
	for _, name := range f.orderBy {
		b = b.OrderBy(q.Field(q.GlobalScope(), name))
	}
	for _, name := range f.orderByDesc {
		b = b.OrderByDescending(q.Field(q.GlobalScope(), name))
	}
	if f.skip > 0 {
		b = b.Skip(f.skip)
	}
	if f.take > 0 {
		b = b.Take(f.take)
	}
	switch f.tracking {
	case "all":
	case "none":
		b = b.AsNoTracking()
	case "identity":
		b = b.AsNoTrackingWithIdentityResolution()
	default:
		return nil, nil, errors.Errorf("unknown tracking %q", f.tracking)
	}
	if f.asOf != "" {
		at, err := time.Parse(time.RFC3339, f.asOf)
		if err != nil {
			return nil, nil, errors.Wrap(err, "invalid --as-of")
		}
		b = b.TemporalAsOf(at)
	}
	built, err := b.Build()
	return built, params, err
}
