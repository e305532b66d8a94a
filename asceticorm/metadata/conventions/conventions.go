// Package conventions builds a metadata model from a type catalog by running
// discovery conventions over every entity type added to it.
package conventions

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

var ErrNoEntityTypes = errors.New("conventions: no entity types are configured")

type Convention interface {
	Name() string
}

// EntityTypeAddedConvention runs once for every entity type added to the
// model, in convention order.
type EntityTypeAddedConvention interface {
	Convention
	ProcessEntityTypeAdded(ctx *BuildContext, entityType *metadata.EntityType) error
}

// ModelFinalizingConvention runs once after all entity types are discovered.
type ModelFinalizingConvention interface {
	Convention
	ProcessModelFinalizing(ctx *BuildContext) error
}

// BuildContext carries the model under construction.
type BuildContext struct {
	Model         *metadata.Model
	Catalog       *metadata.TypeCatalog
	Configuration *metadata.ModelConfiguration
	Classifier    *metadata.MemberClassifier
	Mappings      metadata.TypeMappingSource
	Logger        logrus.FieldLogger
	diagnostics   *multierror.Error
	pending       []*metadata.EntityType
}

func (c *BuildContext) AddEntityType(desc *metadata.TypeDescriptor, source metadata.ConfigurationSource) (*metadata.EntityType, error) {
	if c.Configuration.GetConfigurationType(desc.Name) == metadata.IgnoredConfiguration {
		return nil, errors.Wrapf(metadata.ErrIgnoredEntityType, "%q", desc.Name)
	}
	et, err := c.Model.AddEntityType(desc, source)
	if err != nil {
		return nil, err
	}
	c.pending = append(c.pending, et)
	c.Logger.WithField("entity_type", et.Name()).Debug("entity type added")
	return et, nil
}

func (c *BuildContext) AddOwnedEntityType(desc *metadata.TypeDescriptor, owner *metadata.EntityType, navigation string) (*metadata.EntityType, error) {
	if c.Configuration.GetConfigurationType(desc.Name) == metadata.IgnoredConfiguration {
		return nil, errors.Wrapf(metadata.ErrIgnoredEntityType, "%q", desc.Name)
	}
	et, err := c.Model.AddOwnedEntityType(desc, owner, navigation, metadata.Convention)
	if err != nil {
		return nil, err
	}
	c.pending = append(c.pending, et)
	c.Logger.WithField("entity_type", et.Name()).Debug("owned entity type added")
	return et, nil
}

// Report records a non-fatal model diagnostic.
func (c *BuildContext) Report(err error) {
	c.Logger.WithError(err).Warn("model diagnostic")
	c.diagnostics = multierror.Append(c.diagnostics, err)
}

type ModelBuilder struct {
	mappings  metadata.TypeMappingSource
	factories *metadata.ParameterBindingFactories
	logger    logrus.FieldLogger
}

func NewModelBuilder(mappings metadata.TypeMappingSource, factories *metadata.ParameterBindingFactories, logger logrus.FieldLogger) *ModelBuilder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ModelBuilder{mappings: mappings, factories: factories, logger: logger}
}

// Build adds every type configured as a non-owned entity type, runs the
// conventions and returns the finalized model. Non-fatal problems are
// available from Model.Diagnostics.
func (b *ModelBuilder) Build(
	catalog *metadata.TypeCatalog,
	configuration *metadata.ModelConfiguration,
	conventions ...Convention,
) (*metadata.Model, error) {
	if configuration == nil {
		configuration = metadata.NewModelConfiguration()
	}
	ctx := &BuildContext{
		Model:         metadata.NewModel(),
		Catalog:       catalog,
		Configuration: configuration,
		Classifier:    metadata.NewMemberClassifier(catalog, configuration, b.mappings, b.factories),
		Mappings:      b.mappings,
		Logger:        b.logger.WithField("component", "model_builder"),
	}
	for _, name := range configuration.ConfiguredTypes() {
		if configuration.GetConfigurationType(name) != metadata.EntityTypeConfiguration {
			continue
		}
		desc, err := catalog.MustLookup(name)
		if err != nil {
			return nil, err
		}
		if _, err := ctx.AddEntityType(desc, metadata.Explicit); err != nil {
			return nil, err
		}
	}
	if len(ctx.pending) == 0 {
		return nil, ErrNoEntityTypes
	}
	for len(ctx.pending) > 0 {
		et := ctx.pending[0]
		ctx.pending = ctx.pending[1:]
		for _, c := range conventions {
			added, ok := c.(EntityTypeAddedConvention)
			if !ok {
				continue
			}
			if err := added.ProcessEntityTypeAdded(ctx, et); err != nil {
				return nil, errors.Wrapf(err, "%s on %s", c.Name(), et.Name())
			}
		}
	}
	for _, c := range conventions {
		finalizing, ok := c.(ModelFinalizingConvention)
		if !ok {
			continue
		}
		if err := finalizing.ProcessModelFinalizing(ctx); err != nil {
			return nil, errors.Wrap(err, c.Name())
		}
	}
	ctx.Model.SetDiagnostics(ctx.diagnostics.ErrorOrNil())
	return ctx.Model.Finalize(), nil
}

// DefaultConventions is the relational convention set.
func DefaultConventions() []Convention {
	return []Convention{
		PropertyDiscoveryConvention{},
		KeyDiscoveryConvention{},
		NewRelationshipDiscoveryConvention(),
		TableConvention{},
		TemporalConvention{},
		TypeMappingConvention{},
	}
}

// CosmosConventions embeds discovered targets into their owners.
func CosmosConventions() []Convention {
	return []Convention{
		PropertyDiscoveryConvention{},
		KeyDiscoveryConvention{},
		NewCosmosRelationshipDiscoveryConvention(),
		TableConvention{},
		TypeMappingConvention{},
	}
}
