package conventions

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

// CosmosRelationshipDiscoveryConvention creates every discovered target as
// owned, so documents embed their related types.
type CosmosRelationshipDiscoveryConvention struct {
	*RelationshipDiscoveryConvention
}

func NewCosmosRelationshipDiscoveryConvention() *CosmosRelationshipDiscoveryConvention {
	c := &CosmosRelationshipDiscoveryConvention{}
	c.RelationshipDiscoveryConvention = &RelationshipDiscoveryConvention{hooks: c}
	return c
}

func (c *CosmosRelationshipDiscoveryConvention) Name() string {
	return "CosmosRelationshipDiscoveryConvention"
}

func (c *CosmosRelationshipDiscoveryConvention) TryGetTargetEntityType(
	ctx *BuildContext,
	source *metadata.EntityType,
	candidate metadata.NavigationCandidate,
) (*metadata.EntityType, error) {
	return c.getTargetEntityType(ctx, source, candidate, true)
}

func (c *CosmosRelationshipDiscoveryConvention) ShouldBeOwned(ctx *BuildContext, target *metadata.EntityType) bool {
	return target.ConfigurationSource() == metadata.Convention ||
		c.RelationshipDiscoveryConvention.ShouldBeOwned(ctx, target)
}
