package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrReadOnlyModel     = errors.New("metadata: the model is read-only")
	ErrDuplicateMember   = errors.New("metadata: duplicate member")
	ErrEntityTypeExists  = errors.New("metadata: entity type already exists")
	ErrIgnoredEntityType = errors.New("metadata: type is configured as ignored")
)

type Model struct {
	Annotatable
	entityTypes map[string]*EntityType
	foreignKeys []*ForeignKey
	readOnly    bool
	version     string
	diagnostics error
	sequence    int
}

func NewModel() *Model {
	return &Model{entityTypes: make(map[string]*EntityType)}
}

func (m *Model) IsReadOnly() bool {
	return m.readOnly
}

// Version identifies the finalized model shape. It is empty before Finalize.
func (m *Model) Version() string {
	return m.version
}

// Diagnostics returns the non-fatal problems found while building the model.
func (m *Model) Diagnostics() error {
	return m.diagnostics
}

func (m *Model) SetDiagnostics(err error) {
	m.diagnostics = err
}

// AddEntityType adds a non-owned entity type named after its descriptor.
func (m *Model) AddEntityType(desc *TypeDescriptor, source ConfigurationSource) (*EntityType, error) {
	if m.readOnly {
		return nil, ErrReadOnlyModel
	}
	if _, ok := m.entityTypes[desc.Name]; ok {
		return nil, errors.Wrapf(ErrEntityTypeExists, "%q", desc.Name)
	}
	et := newEntityType(m, desc.Name, desc, source)
	m.entityTypes[et.name] = et
	return et, nil
}

// AddOwnedEntityType adds a dependent type owned by owner through navigation.
// Owned types are named "<Owner>.<Navigation>#<Type>".
func (m *Model) AddOwnedEntityType(desc *TypeDescriptor, owner *EntityType, navigation string, source ConfigurationSource) (*EntityType, error) {
	if m.readOnly {
		return nil, ErrReadOnlyModel
	}
	name := fmt.Sprintf("%s.%s#%s", owner.Name(), navigation, desc.Name)
	if _, ok := m.entityTypes[name]; ok {
		return nil, errors.Wrapf(ErrEntityTypeExists, "%q", name)
	}
	et := newEntityType(m, name, desc, source)
	et.owned = true
	et.owner = owner
	et.ownerNavigation = navigation
	m.entityTypes[name] = et
	return et, nil
}

func (m *Model) RemoveEntityType(et *EntityType) error {
	if m.readOnly {
		return ErrReadOnlyModel
	}
	delete(m.entityTypes, et.name)
	et.model = nil
	return nil
}

func (m *Model) FindEntityType(name string) *EntityType {
	return m.entityTypes[name]
}

// EntityTypes returns all entity types ordered by name.
func (m *Model) EntityTypes() []*EntityType {
	result := make([]*EntityType, 0, len(m.entityTypes))
	for _, et := range m.entityTypes {
		result = append(result, et)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].name < result[j].name })
	return result
}

func (m *Model) ForeignKeys() []*ForeignKey {
	return m.foreignKeys
}

func (m *Model) AddForeignKey(dependent, principal *EntityType, properties []*Property, unique, ownership bool) (*ForeignKey, error) {
	if m.readOnly {
		return nil, ErrReadOnlyModel
	}
	fk := &ForeignKey{
		dependent:  dependent,
		principal:  principal,
		properties: properties,
		unique:     unique,
		ownership:  ownership,
	}
	for _, p := range properties {
		fk.required = fk.required || !p.nullable
	}
	if principal.key != nil {
		fk.principalKey = principal.key
	}
	dependent.foreignKeys = append(dependent.foreignKeys, fk)
	principal.referencing = append(principal.referencing, fk)
	m.foreignKeys = append(m.foreignKeys, fk)
	if ownership {
		dependent.ownership = fk
	}
	return fk, nil
}

// Finalize makes the model read-only and stamps its version.
func (m *Model) Finalize() *Model {
	if m.readOnly {
		return m
	}
	h := sha256.New()
	h.Write([]byte("ascetic-orm/model/v1\x00"))
	for _, et := range m.EntityTypes() {
		fmt.Fprintf(h, "%s|%s|%t\n", et.name, et.Table(), et.IsTemporal())
		for _, p := range et.properties {
			fmt.Fprintf(h, " %s:%s:%t\n", p.name, p.typeName, p.nullable)
		}
		for _, n := range et.navigations {
			fmt.Fprintf(h, " ->%s:%s:%t\n", n.name, n.target.name, n.collection)
		}
	}
	for _, fk := range m.foreignKeys {
		h.Write([]byte(fk.String()))
	}
	m.version = hex.EncodeToString(h.Sum(nil))[:16]
	for _, fk := range m.foreignKeys {
		if fk.principalKey == nil {
			fk.principalKey = fk.principal.key
		}
	}
	m.readOnly = true
	return m
}

type EntityType struct {
	Annotatable
	model           *Model
	ordinal         int
	name            string
	descriptor      *TypeDescriptor
	source          ConfigurationSource
	owned           bool
	owner           *EntityType
	ownerNavigation string
	ownership       *ForeignKey
	table           string
	temporal        *TemporalTable
	discriminator   string
	properties      []*Property
	services        []*ServiceProperty
	navigations     []*Navigation
	key             *Key
	foreignKeys     []*ForeignKey
	referencing     []*ForeignKey
}

func newEntityType(m *Model, name string, desc *TypeDescriptor, source ConfigurationSource) *EntityType {
	m.sequence++
	return &EntityType{
		ordinal:    m.sequence,
		model:      m,
		name:       name,
		descriptor: desc,
		source:     source,
		table:      desc.Name,
	}
}

func (e *EntityType) Name() string {
	return e.name
}

// Ordinal is the position in which the type was added to its model.
func (e *EntityType) Ordinal() int {
	return e.ordinal
}

// ShortName is the name of the underlying type.
func (e *EntityType) ShortName() string {
	return e.descriptor.Name
}

func (e *EntityType) Descriptor() *TypeDescriptor {
	return e.descriptor
}

func (e *EntityType) Model() *Model {
	return e.model
}

func (e *EntityType) IsReadOnly() bool {
	return e.model == nil || e.model.readOnly
}

func (e *EntityType) ConfigurationSource() ConfigurationSource {
	return e.source
}

func (e *EntityType) UpdateConfigurationSource(source ConfigurationSource) {
	if source > e.source {
		e.source = source
	}
}

func (e *EntityType) IsOwned() bool {
	return e.owned
}

// Owner returns nil for non-owned types.
func (e *EntityType) Owner() *EntityType {
	return e.owner
}

func (e *EntityType) OwnerNavigation() string {
	return e.ownerNavigation
}

func (e *EntityType) Ownership() *ForeignKey {
	return e.ownership
}

// RootOwner walks the ownership chain up to the non-owned type.
func (e *EntityType) RootOwner() *EntityType {
	root := e
	for root.owner != nil {
		root = root.owner
	}
	return root
}

func (e *EntityType) Table() string {
	if e.owned && e.owner != nil && !e.IsCollectionOwned() {
		return e.owner.Table()
	}
	return e.table
}

func (e *EntityType) SetTable(table string) {
	e.table = table
}

// IsCollectionOwned reports whether the type is owned through a collection
// navigation. Such types are stored embedded in the owner's row.
func (e *EntityType) IsCollectionOwned() bool {
	if e.owner == nil {
		return false
	}
	nav := e.owner.FindNavigation(e.ownerNavigation)
	return nav != nil && nav.collection
}

// ColumnPrefix is the flattening prefix of table-split owned types.
func (e *EntityType) ColumnPrefix() string {
	var parts []string
	for cur := e; cur.owner != nil; cur = cur.owner {
		parts = append([]string{cur.ownerNavigation}, parts...)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "_") + "_"
}

func (e *EntityType) IsTemporal() bool {
	if e.owned && e.owner != nil {
		return e.owner.IsTemporal()
	}
	return e.temporal != nil
}

func (e *EntityType) Temporal() (TemporalTable, bool) {
	if e.owned && e.owner != nil {
		return e.owner.Temporal()
	}
	if e.temporal == nil {
		return TemporalTable{}, false
	}
	return *e.temporal, true
}

func (e *EntityType) SetTemporal(t TemporalTable) {
	e.temporal = &t
}

func (e *EntityType) Discriminator() string {
	if e.discriminator == "" {
		return e.descriptor.Name
	}
	return e.discriminator
}

func (e *EntityType) SetDiscriminator(value string) {
	e.discriminator = value
}

func (e *EntityType) AddProperty(name, typeName string, nullable, shadow bool, source ConfigurationSource) (*Property, error) {
	if e.IsReadOnly() {
		return nil, ErrReadOnlyModel
	}
	if e.findMember(name) {
		return nil, errors.Wrapf(ErrDuplicateMember, "%s.%s", e.name, name)
	}
	p := &Property{
		declaringType: e,
		name:          name,
		typeName:      typeName,
		nullable:      nullable,
		shadow:        shadow,
		source:        source,
	}
	e.insertProperty(p)
	return p, nil
}

// insertProperty keeps the properties in declaration order of their
// members, whichever convention adds them. Shadow properties follow in the
// order they were added.
func (e *EntityType) insertProperty(p *Property) {
	rank := e.declarationRank(p)
	i := len(e.properties)
	for i > 0 && e.declarationRank(e.properties[i-1]) > rank {
		i--
	}
	e.properties = append(e.properties, nil)
	copy(e.properties[i+1:], e.properties[i:])
	e.properties[i] = p
}

func (e *EntityType) declarationRank(p *Property) int {
	if e.descriptor == nil || p.shadow {
		return math.MaxInt
	}
	if i := e.descriptor.MemberIndex(p.name); i >= 0 {
		return i
	}
	return math.MaxInt
}

func (e *EntityType) FindProperty(name string) *Property {
	for _, p := range e.properties {
		if p.name == name {
			return p
		}
	}
	return nil
}

func (e *EntityType) Properties() []*Property {
	return e.properties
}

func (e *EntityType) AddServiceProperty(name string, factory ParameterBindingFactory) (*ServiceProperty, error) {
	if e.IsReadOnly() {
		return nil, ErrReadOnlyModel
	}
	if e.findMember(name) {
		return nil, errors.Wrapf(ErrDuplicateMember, "%s.%s", e.name, name)
	}
	sp := &ServiceProperty{declaringType: e, name: name, factory: factory}
	e.services = append(e.services, sp)
	return sp, nil
}

func (e *EntityType) ServiceProperties() []*ServiceProperty {
	return e.services
}

func (e *EntityType) SetPrimaryKey(properties ...*Property) *Key {
	for _, p := range properties {
		p.nullable = false
	}
	e.key = &Key{declaringType: e, properties: properties}
	return e.key
}

func (e *EntityType) FindPrimaryKey() *Key {
	return e.key
}

func (e *EntityType) AddNavigation(name string, target *EntityType, collection bool, fk *ForeignKey, onDependent bool) (*Navigation, error) {
	if e.IsReadOnly() {
		return nil, ErrReadOnlyModel
	}
	if e.findMember(name) {
		return nil, errors.Wrapf(ErrDuplicateMember, "%s.%s", e.name, name)
	}
	n := &Navigation{
		declaringType: e,
		name:          name,
		target:        target,
		collection:    collection,
		foreignKey:    fk,
		onDependent:   onDependent,
	}
	if fk != nil {
		if onDependent {
			fk.dependentToPrincipal = n
		} else {
			fk.principalToDependent = n
		}
	}
	e.navigations = append(e.navigations, n)
	return n, nil
}

func (e *EntityType) FindNavigation(name string) *Navigation {
	for _, n := range e.navigations {
		if n.name == name {
			return n
		}
	}
	return nil
}

func (e *EntityType) Navigations() []*Navigation {
	return e.navigations
}

// ForeignKeys returns the keys declared on this type as the dependent.
func (e *EntityType) ForeignKeys() []*ForeignKey {
	return e.foreignKeys
}

// ReferencingForeignKeys returns the keys that target this type.
func (e *EntityType) ReferencingForeignKeys() []*ForeignKey {
	return e.referencing
}

func (e *EntityType) findMember(name string) bool {
	if e.FindProperty(name) != nil || e.FindNavigation(name) != nil {
		return true
	}
	for _, s := range e.services {
		if s.name == name {
			return true
		}
	}
	return false
}

func (e *EntityType) String() string {
	return e.name
}

type Property struct {
	declaringType *EntityType
	name          string
	typeName      string
	nullable      bool
	shadow        bool
	source        ConfigurationSource
	mapping       *TypeMapping
}

func (p *Property) Name() string { return p.name }
func (p *Property) TypeName() string { return p.typeName }
func (p *Property) IsNullable() bool { return p.nullable }
func (p *Property) IsShadow() bool { return p.shadow }
func (p *Property) DeclaringType() *EntityType { return p.declaringType }
func (p *Property) ConfigurationSource() ConfigurationSource { return p.source }
func (p *Property) TypeMapping() *TypeMapping { return p.mapping }

func (p *Property) SetTypeMapping(m *TypeMapping) {
	p.mapping = m
}

func (p *Property) SetNullable(nullable bool) {
	p.nullable = nullable
}

// ColumnName is the relational column name. Table-split owned properties
// are prefixed with their navigation path.
func (p *Property) ColumnName() string {
	et := p.declaringType
	if et.IsOwned() && !et.IsCollectionOwned() {
		if principal := et.ownerKeyColumn(p); principal != nil {
			return principal.ColumnName()
		}
		return et.ColumnPrefix() + p.name
	}
	return p.name
}

func (p *Property) IsKey() bool {
	k := p.declaringType.key
	if k == nil {
		return false
	}
	for _, kp := range k.properties {
		if kp == p {
			return true
		}
	}
	return false
}

// ownerKeyColumn returns the owner key property that a shadow key property
// of a table-split owned type mirrors, or nil.
func (e *EntityType) ownerKeyColumn(p *Property) *Property {
	if !p.shadow || e.ownership == nil || !p.IsKey() {
		return nil
	}
	principalKey := e.ownership.PrincipalKey()
	if principalKey == nil {
		return nil
	}
	for i, fp := range e.ownership.properties {
		if fp == p && i < len(principalKey.properties) {
			return principalKey.properties[i]
		}
	}
	return nil
}

type ServiceProperty struct {
	declaringType *EntityType
	name          string
	factory       ParameterBindingFactory
}

func (s *ServiceProperty) Name() string { return s.name }
func (s *ServiceProperty) Factory() ParameterBindingFactory { return s.factory }

type Key struct {
	declaringType *EntityType
	properties    []*Property
}

func (k *Key) Properties() []*Property { return k.properties }
func (k *Key) DeclaringType() *EntityType { return k.declaringType }

type Navigation struct {
	declaringType *EntityType
	name          string
	target        *EntityType
	collection    bool
	foreignKey    *ForeignKey
	onDependent   bool
}

func (n *Navigation) Name() string { return n.name }
func (n *Navigation) DeclaringType() *EntityType { return n.declaringType }
func (n *Navigation) TargetType() *EntityType { return n.target }
func (n *Navigation) IsCollection() bool { return n.collection }
func (n *Navigation) ForeignKey() *ForeignKey { return n.foreignKey }

// IsOnDependent reports whether the declaring type holds the foreign key.
func (n *Navigation) IsOnDependent() bool { return n.onDependent }

func (n *Navigation) IsOwned() bool {
	return n.foreignKey != nil && n.foreignKey.ownership
}

// Inverse returns the navigation on the other side, if any.
func (n *Navigation) Inverse() *Navigation {
	if n.foreignKey == nil {
		return nil
	}
	if n.onDependent {
		return n.foreignKey.principalToDependent
	}
	return n.foreignKey.dependentToPrincipal
}

type RelationshipKind string

const (
	OneToMany RelationshipKind = "OneToMany"
	ManyToOne RelationshipKind = "ManyToOne"
	OneToOne  RelationshipKind = "OneToOne"
	Ownership RelationshipKind = "Ownership"
)

type ForeignKey struct {
	dependent            *EntityType
	principal            *EntityType
	properties           []*Property
	principalKey         *Key
	unique               bool
	required             bool
	ownership            bool
	dependentToPrincipal *Navigation
	principalToDependent *Navigation
}

func (f *ForeignKey) DeclaringEntityType() *EntityType { return f.dependent }
func (f *ForeignKey) PrincipalEntityType() *EntityType { return f.principal }
func (f *ForeignKey) Properties() []*Property { return f.properties }
func (f *ForeignKey) IsUnique() bool { return f.unique }
func (f *ForeignKey) IsRequired() bool { return f.required }
func (f *ForeignKey) IsOwnership() bool { return f.ownership }
func (f *ForeignKey) DependentToPrincipal() *Navigation { return f.dependentToPrincipal }
func (f *ForeignKey) PrincipalToDependent() *Navigation { return f.principalToDependent }

func (f *ForeignKey) PrincipalKey() *Key {
	if f.principalKey == nil {
		return f.principal.key
	}
	return f.principalKey
}

func (f *ForeignKey) Kind() RelationshipKind {
	switch {
	case f.ownership:
		return Ownership
	case f.unique:
		return OneToOne
	case f.dependentToPrincipal != nil && f.principalToDependent == nil:
		return ManyToOne
	default:
		return OneToMany
	}
}

func (f *ForeignKey) String() string {
	names := make([]string, len(f.properties))
	for i, p := range f.properties {
		names[i] = p.name
	}
	return fmt.Sprintf("%s(%s) -> %s [%s]", f.dependent.name, strings.Join(names, ", "), f.principal.name, f.Kind())
}
