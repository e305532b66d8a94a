package metadata

import (
	"sort"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/option"
)

// NavigationCandidate is a member whose type may be the target of a
// relationship. ShouldBeOwned is Nothing when the target is not configured.
type NavigationCandidate struct {
	Member        MemberDescriptor
	TargetType    *TypeDescriptor
	ShouldBeOwned option.Option[bool]
}

// MemberClassifier decides which members of a type are navigations,
// properties or service properties.
type MemberClassifier struct {
	catalog       *TypeCatalog
	configuration *ModelConfiguration
	mappings      TypeMappingSource
	factories     *ParameterBindingFactories
}

func NewMemberClassifier(
	catalog *TypeCatalog,
	configuration *ModelConfiguration,
	mappings TypeMappingSource,
	factories *ParameterBindingFactories,
) *MemberClassifier {
	return &MemberClassifier{
		catalog:       catalog,
		configuration: configuration,
		mappings:      mappings,
		factories:     factories,
	}
}

func (c *MemberClassifier) Configuration() *ModelConfiguration {
	return c.configuration
}

func (c *MemberClassifier) Mappings() TypeMappingSource {
	return c.mappings
}

// GetNavigationCandidates returns the candidates of entityType ordered by
// member name. The result is stored on the entity type and computed once,
// unless the entity type is read-only or detached from its model.
func (c *MemberClassifier) GetNavigationCandidates(entityType *EntityType) []NavigationCandidate {
	if v, ok := entityType.FindAnnotation(NavigationCandidatesAnnotation); ok {
		return v.([]NavigationCandidate)
	}
	if entityType.IsReadOnly() {
		return c.computeNavigationCandidates(entityType)
	}
	return entityType.GetOrAddAnnotation(NavigationCandidatesAnnotation, func() any {
		return c.computeNavigationCandidates(entityType)
	}).([]NavigationCandidate)
}

func (c *MemberClassifier) computeNavigationCandidates(entityType *EntityType) []NavigationCandidate {
	var candidates []NavigationCandidate
	for _, member := range entityType.Descriptor().Members {
		target, shouldBeOwned := c.FindCandidateNavigationPropertyType(member)
		if target == nil {
			continue
		}
		candidates = append(candidates, NavigationCandidate{
			Member:        member,
			TargetType:    target,
			ShouldBeOwned: shouldBeOwned,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Member.Name < candidates[j].Member.Name
	})
	return candidates
}

// FindCandidateNavigationPropertyType returns the target type of member, or
// nil when member cannot be a navigation.
func (c *MemberClassifier) FindCandidateNavigationPropertyType(member MemberDescriptor) (*TypeDescriptor, option.Option[bool]) {
	if !IsCandidateProperty(member, !member.Sequence) {
		return nil, option.Nothing[bool]()
	}
	target, ok := c.catalog.Lookup(member.Type)
	if !ok {
		return nil, option.Nothing[bool]()
	}
	shouldBeOwned, ok := c.isCandidateNavigationPropertyType(target, member)
	if !ok {
		return nil, option.Nothing[bool]()
	}
	return target, shouldBeOwned
}

func (c *MemberClassifier) isCandidateNavigationPropertyType(target *TypeDescriptor, member MemberDescriptor) (option.Option[bool], bool) {
	configurationType := c.configuration.GetConfigurationType(target.Name)
	if configurationType != 0 && !configurationType.IsEntityType() {
		return option.Nothing[bool](), false
	}
	if !target.IsValidEntityType() {
		return option.Nothing[bool](), false
	}
	if configurationType != 0 {
		return option.Some(configurationType == OwnedEntityTypeConfiguration), true
	}
	if c.factories.FindFactory(MemberTypeName(member)) != nil {
		return option.Nothing[bool](), false
	}
	if c.mappings != nil && c.mappings.FindMapping(target.Name) != nil {
		return option.Nothing[bool](), false
	}
	return option.Nothing[bool](), true
}

// IsCandidatePrimitiveProperty reports whether member maps to a store column.
func (c *MemberClassifier) IsCandidatePrimitiveProperty(member MemberDescriptor) bool {
	if !IsCandidateProperty(member, true) {
		return false
	}
	typeName := MemberTypeName(member)
	configurationType := c.configuration.GetConfigurationType(typeName)
	if configurationType == PropertyConfiguration {
		return true
	}
	return configurationType == 0 && c.mappings != nil && c.mappings.FindMapping(typeName) != nil
}

// FindServicePropertyCandidateBindingFactory returns nil when member is not a
// service property.
func (c *MemberClassifier) FindServicePropertyCandidateBindingFactory(member MemberDescriptor) ParameterBindingFactory {
	if !member.Readable {
		return nil
	}
	typeName := MemberTypeName(member)
	configurationType := c.configuration.GetConfigurationType(typeName)
	if configurationType != ServicePropertyConfiguration {
		if configurationType != 0 {
			return nil
		}
		if IsCandidateProperty(member, true) && c.mappings != nil && c.mappings.FindMapping(typeName) != nil {
			return nil
		}
	}
	return c.factories.FindFactory(typeName)
}

// IsCandidateProperty reports whether member is a public readable member,
// writable too when needsWrite is set.
func IsCandidateProperty(member MemberDescriptor, needsWrite bool) bool {
	if !member.Public || !member.Readable {
		return false
	}
	return !needsWrite || member.Writable
}

// MemberTypeName is the type used for store mapping lookup. Sequences map as
// "[]<element>".
func MemberTypeName(member MemberDescriptor) string {
	if member.Sequence {
		if member.Type == "byte" {
			return TypeBytes
		}
		return "[]" + member.Type
	}
	return member.Type
}
