package conventions

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

// PropertyDiscoveryConvention adds scalar and service properties.
type PropertyDiscoveryConvention struct{}

func (PropertyDiscoveryConvention) Name() string {
	return "PropertyDiscoveryConvention"
}

func (PropertyDiscoveryConvention) ProcessEntityTypeAdded(ctx *BuildContext, et *metadata.EntityType) error {
	for _, member := range et.Descriptor().Members {
		if et.FindProperty(member.Name) != nil || et.FindNavigation(member.Name) != nil {
			continue
		}
		if ctx.Classifier.IsCandidatePrimitiveProperty(member) {
			if _, err := et.AddProperty(member.Name, metadata.MemberTypeName(member), member.Nullable, false, metadata.Convention); err != nil {
				return err
			}
			continue
		}
		if factory := ctx.Classifier.FindServicePropertyCandidateBindingFactory(member); factory != nil {
			if _, err := et.AddServiceProperty(member.Name, factory); err != nil {
				return err
			}
		}
	}
	return nil
}
