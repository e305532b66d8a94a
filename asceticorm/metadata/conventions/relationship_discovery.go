package conventions

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

var ErrAmbiguousNavigation = errors.New("conventions: ambiguous navigation")

// relationshipHooks are the points provider conventions override.
type relationshipHooks interface {
	TryGetTargetEntityType(ctx *BuildContext, source *metadata.EntityType, candidate metadata.NavigationCandidate) (*metadata.EntityType, error)
	ShouldBeOwned(ctx *BuildContext, target *metadata.EntityType) bool
}

// RelationshipDiscoveryConvention turns navigation candidates into
// relationships when the inverse is unambiguous.
type RelationshipDiscoveryConvention struct {
	hooks relationshipHooks
}

func NewRelationshipDiscoveryConvention() *RelationshipDiscoveryConvention {
	c := &RelationshipDiscoveryConvention{}
	c.hooks = c
	return c
}

func (c *RelationshipDiscoveryConvention) Name() string {
	return "RelationshipDiscoveryConvention"
}

func (c *RelationshipDiscoveryConvention) TryGetTargetEntityType(
	ctx *BuildContext,
	source *metadata.EntityType,
	candidate metadata.NavigationCandidate,
) (*metadata.EntityType, error) {
	return c.getTargetEntityType(ctx, source, candidate, false)
}

// ShouldBeOwned reports whether target is configured as owned.
func (c *RelationshipDiscoveryConvention) ShouldBeOwned(ctx *BuildContext, target *metadata.EntityType) bool {
	return target.IsOwned() ||
		ctx.Configuration.GetConfigurationType(target.ShortName()) == metadata.OwnedEntityTypeConfiguration
}

func (c *RelationshipDiscoveryConvention) getTargetEntityType(
	ctx *BuildContext,
	source *metadata.EntityType,
	candidate metadata.NavigationCandidate,
	targetShouldBeOwned bool,
) (*metadata.EntityType, error) {
	owned := candidate.ShouldBeOwned.UnwrapOr(targetShouldBeOwned)
	if owned {
		return ctx.AddOwnedEntityType(candidate.TargetType, source, candidate.Member.Name)
	}
	if existing := ctx.Model.FindEntityType(candidate.TargetType.Name); existing != nil {
		return existing, nil
	}
	return ctx.AddEntityType(candidate.TargetType, metadata.Convention)
}

func (c *RelationshipDiscoveryConvention) ProcessEntityTypeAdded(ctx *BuildContext, source *metadata.EntityType) error {
	candidates := ctx.Classifier.GetNavigationCandidates(source)
	for _, candidate := range candidates {
		name := candidate.Member.Name
		if source.FindNavigation(name) != nil || isAmbiguous(source, name) {
			continue
		}
		if owner := source.Owner(); owner != nil && candidate.TargetType.Name == owner.ShortName() {
			if err := c.addOwnerBackReference(source, name); err != nil {
				return err
			}
			continue
		}
		if err := c.discover(ctx, source, candidate, candidates); err != nil {
			if errors.Is(err, metadata.ErrIgnoredEntityType) || errors.Is(err, ErrAmbiguousNavigation) {
				ctx.Report(err)
				continue
			}
			return err
		}
	}
	return nil
}

func (c *RelationshipDiscoveryConvention) discover(
	ctx *BuildContext,
	source *metadata.EntityType,
	candidate metadata.NavigationCandidate,
	sourceCandidates []metadata.NavigationCandidate,
) error {
	target, err := c.hooks.TryGetTargetEntityType(ctx, source, candidate)
	if err != nil {
		return err
	}
	if !target.IsOwned() && c.hooks.ShouldBeOwned(ctx, target) {
		target, err = c.reownTarget(ctx, source, target, candidate)
		if err != nil {
			return err
		}
	}
	if target.IsOwned() {
		return c.createOwnership(ctx, source, target, candidate)
	}

	sourceNavs := candidatesTargeting(sourceCandidates, target.ShortName(), "")
	exclude := ""
	if target == source {
		exclude = candidate.Member.Name
	}
	inverses := candidatesTargeting(ctx.Classifier.GetNavigationCandidates(target), source.ShortName(), exclude)
	if target == source {
		sourceNavs = inverses
	}
	inverses = withoutConfigured(target, inverses)

	switch {
	case len(inverses) == 0:
		return c.createRelationship(ctx, source, target, candidate, nil)
	case len(inverses) == 1 && len(sourceNavs) <= 1:
		inverse := inverses[0]
		return c.createRelationship(ctx, source, target, candidate, &inverse)
	default:
		names := []string{candidate.Member.Name}
		for _, n := range sourceNavs {
			if n.Member.Name != candidate.Member.Name {
				names = append(names, n.Member.Name)
			}
		}
		markAmbiguous(source, names...)
		inverseNames := make([]string, len(inverses))
		for i, inv := range inverses {
			inverseNames[i] = inv.Member.Name
		}
		markAmbiguous(target, inverseNames...)
		return errors.Wrapf(ErrAmbiguousNavigation,
			"%s.%s could be paired with %s.{%s}",
			source.Name(), candidate.Member.Name, target.Name(), strings.Join(inverseNames, ", "))
	}
}

// reownTarget replaces a convention-created non-owned target with an owned
// one when it is not referenced yet.
func (c *RelationshipDiscoveryConvention) reownTarget(
	ctx *BuildContext,
	source *metadata.EntityType,
	target *metadata.EntityType,
	candidate metadata.NavigationCandidate,
) (*metadata.EntityType, error) {
	if target.ConfigurationSource() != metadata.Convention ||
		len(target.ReferencingForeignKeys()) > 0 ||
		len(target.ForeignKeys()) > 0 ||
		target == source {
		return target, nil
	}
	if err := ctx.Model.RemoveEntityType(target); err != nil {
		return nil, err
	}
	return ctx.AddOwnedEntityType(candidate.TargetType, source, candidate.Member.Name)
}

func (c *RelationshipDiscoveryConvention) createOwnership(
	ctx *BuildContext,
	owner *metadata.EntityType,
	owned *metadata.EntityType,
	candidate metadata.NavigationCandidate,
) error {
	var fkProperties []*metadata.Property
	if key := owner.FindPrimaryKey(); key != nil {
		for _, kp := range key.Properties() {
			name := owner.ShortName() + kp.Name()
			if kp.Name() == owner.ShortName()+"Id" {
				name = kp.Name()
			}
			p := owned.FindProperty(name)
			if p == nil {
				var err error
				p, err = owned.AddProperty(name, kp.TypeName(), false, true, metadata.Convention)
				if err != nil {
					return err
				}
			}
			fkProperties = append(fkProperties, p)
		}
	}
	collection := candidate.Member.Sequence
	fk, err := ctx.Model.AddForeignKey(owned, owner, fkProperties, !collection, true)
	if err != nil {
		return err
	}
	_, err = owner.AddNavigation(candidate.Member.Name, owned, collection, fk, false)
	return err
}

func (c *RelationshipDiscoveryConvention) addOwnerBackReference(owned *metadata.EntityType, name string) error {
	fk := owned.Ownership()
	if fk == nil {
		return nil
	}
	_, err := owned.AddNavigation(name, owned.Owner(), false, fk, true)
	return err
}

func (c *RelationshipDiscoveryConvention) createRelationship(
	ctx *BuildContext,
	source *metadata.EntityType,
	target *metadata.EntityType,
	candidate metadata.NavigationCandidate,
	inverse *metadata.NavigationCandidate,
) error {
	sourceIsCollection := candidate.Member.Sequence
	var principal, dependent *metadata.EntityType
	var principalNav, dependentNav string
	unique := false

	switch {
	case inverse == nil && sourceIsCollection:
		principal, dependent, principalNav = source, target, candidate.Member.Name
	case inverse == nil:
		principal, dependent, dependentNav = target, source, candidate.Member.Name
	case sourceIsCollection && inverse.Member.Sequence:
		markAmbiguous(source, candidate.Member.Name)
		markAmbiguous(target, inverse.Member.Name)
		return errors.Wrapf(ErrAmbiguousNavigation,
			"%s.%s and %s.%s are both collections; many-to-many is not discovered",
			source.Name(), candidate.Member.Name, target.Name(), inverse.Member.Name)
	case sourceIsCollection:
		principal, dependent = source, target
		principalNav, dependentNav = candidate.Member.Name, inverse.Member.Name
	case inverse.Member.Sequence:
		principal, dependent = target, source
		principalNav, dependentNav = inverse.Member.Name, candidate.Member.Name
	default:
		unique = true
		if oneToOneSourceIsDependent(source, target, candidate, *inverse) {
			principal, dependent = target, source
			principalNav, dependentNav = inverse.Member.Name, candidate.Member.Name
		} else {
			principal, dependent = source, target
			principalNav, dependentNav = candidate.Member.Name, inverse.Member.Name
		}
	}

	fkProperty, err := c.findOrCreateForeignKeyProperty(dependent, principal, dependentNav)
	if err != nil {
		return err
	}
	fk, err := ctx.Model.AddForeignKey(dependent, principal, []*metadata.Property{fkProperty}, unique, false)
	if err != nil {
		return err
	}
	if dependentNav != "" {
		if _, err := dependent.AddNavigation(dependentNav, principal, false, fk, true); err != nil {
			return err
		}
	}
	if principalNav != "" {
		collection := !unique
		if _, err := principal.AddNavigation(principalNav, dependent, collection, fk, false); err != nil {
			return err
		}
	}
	ctx.Logger.WithField("relationship", fk.String()).Debug("relationship discovered")
	return nil
}

// oneToOneSourceIsDependent picks the dependent of a reference pair: the side
// that declares a matching foreign key member, otherwise the side declared
// second.
func oneToOneSourceIsDependent(source, target *metadata.EntityType, candidate, inverse metadata.NavigationCandidate) bool {
	sourceHasFK := hasMember(source.Descriptor(), candidate.Member.Name+"Id") ||
		hasMember(source.Descriptor(), target.ShortName()+"Id")
	targetHasFK := hasMember(target.Descriptor(), inverse.Member.Name+"Id") ||
		hasMember(target.Descriptor(), source.ShortName()+"Id")
	if sourceHasFK != targetHasFK {
		return sourceHasFK
	}
	return source.Ordinal() > target.Ordinal()
}

// findOrCreateForeignKeyProperty looks for "<Navigation>Id" then
// "<PrincipalType>Id" and creates a shadow property when neither exists.
// A property another foreign key already uses is not shared; the shadow
// then gets a numbered name such as "CustomerId1".
func (c *RelationshipDiscoveryConvention) findOrCreateForeignKeyProperty(
	dependent, principal *metadata.EntityType,
	dependentNav string,
) (*metadata.Property, error) {
	var names []string
	if dependentNav != "" {
		names = append(names, dependentNav+"Id")
	}
	names = append(names, principal.ShortName()+"Id")
	taken := false
	for _, name := range names {
		if p := dependent.FindProperty(name); p != nil {
			if !p.IsKey() && !usedByForeignKey(dependent, p) {
				return p, nil
			}
			taken = true
			continue
		}
		if m, ok := dependent.Descriptor().FindMember(name); ok && !m.Sequence {
			return dependent.AddProperty(name, m.Type, m.Nullable, false, metadata.Convention)
		}
	}
	keyType := keyTypeName(principal.Descriptor())
	if key := principal.FindPrimaryKey(); key != nil && len(key.Properties()) == 1 {
		keyType = key.Properties()[0].TypeName()
	}
	name := names[0]
	if taken {
		name = uniqueMemberName(dependent, name)
	}
	return dependent.AddProperty(name, keyType, true, true, metadata.Convention)
}

func usedByForeignKey(et *metadata.EntityType, p *metadata.Property) bool {
	for _, fk := range et.ForeignKeys() {
		for _, fp := range fk.Properties() {
			if fp == p {
				return true
			}
		}
	}
	return false
}

func uniqueMemberName(et *metadata.EntityType, base string) string {
	for i := 1; ; i++ {
		name := base + strconv.Itoa(i)
		if et.FindProperty(name) == nil && et.FindNavigation(name) == nil && !hasMember(et.Descriptor(), name) {
			return name
		}
	}
}

func candidatesTargeting(candidates []metadata.NavigationCandidate, typeName, exclude string) []metadata.NavigationCandidate {
	var result []metadata.NavigationCandidate
	for _, c := range candidates {
		if c.TargetType.Name == typeName && c.Member.Name != exclude {
			result = append(result, c)
		}
	}
	return result
}

// withoutConfigured drops inverse candidates already bound to a navigation.
func withoutConfigured(target *metadata.EntityType, candidates []metadata.NavigationCandidate) []metadata.NavigationCandidate {
	var result []metadata.NavigationCandidate
	for _, c := range candidates {
		if target.FindNavigation(c.Member.Name) == nil && !isAmbiguous(target, c.Member.Name) {
			result = append(result, c)
		}
	}
	return result
}

func hasMember(desc *metadata.TypeDescriptor, name string) bool {
	_, ok := desc.FindMember(name)
	return ok
}

func isAmbiguous(et *metadata.EntityType, member string) bool {
	v, ok := et.FindAnnotation(metadata.AmbiguousNavigationsAnnotation)
	if !ok {
		return false
	}
	for _, name := range v.([]string) {
		if name == member {
			return true
		}
	}
	return false
}

func markAmbiguous(et *metadata.EntityType, members ...string) {
	var existing []string
	if v, ok := et.FindAnnotation(metadata.AmbiguousNavigationsAnnotation); ok {
		existing = v.([]string)
	}
	seen := make(map[string]bool, len(existing))
	for _, name := range existing {
		seen[name] = true
	}
	for _, name := range members {
		if !seen[name] {
			existing = append(existing, name)
			seen[name] = true
		}
	}
	sort.Strings(existing)
	et.SetAnnotation(metadata.AmbiguousNavigationsAnnotation, existing)
}

// AmbiguousNavigations returns the members left unconfigured because their
// inverse could not be determined.
func AmbiguousNavigations(et *metadata.EntityType) []string {
	if v, ok := et.FindAnnotation(metadata.AmbiguousNavigationsAnnotation); ok {
		return v.([]string)
	}
	return nil
}
