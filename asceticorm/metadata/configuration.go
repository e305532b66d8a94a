package metadata

import "sort"

// ConfigurationSource orders how authoritative a piece of configuration is.
type ConfigurationSource int

const (
	Convention ConfigurationSource = iota
	DataAnnotation
	Explicit
)

func (s ConfigurationSource) String() string {
	switch s {
	case Explicit:
		return "Explicit"
	case DataAnnotation:
		return "DataAnnotation"
	default:
		return "Convention"
	}
}

// Overrides reports whether s may replace configuration made from other.
func (s ConfigurationSource) Overrides(other ConfigurationSource) bool {
	return s >= other
}

type TypeConfigurationType int

const (
	EntityTypeConfiguration TypeConfigurationType = iota + 1
	OwnedEntityTypeConfiguration
	PropertyConfiguration
	ServicePropertyConfiguration
	IgnoredConfiguration
)

func (t TypeConfigurationType) String() string {
	switch t {
	case EntityTypeConfiguration:
		return "EntityType"
	case OwnedEntityTypeConfiguration:
		return "OwnedEntityType"
	case PropertyConfiguration:
		return "Property"
	case ServicePropertyConfiguration:
		return "ServiceProperty"
	case IgnoredConfiguration:
		return "Ignored"
	}
	return "None"
}

func (t TypeConfigurationType) IsEntityType() bool {
	return t == EntityTypeConfiguration || t == OwnedEntityTypeConfiguration
}

// TemporalTable is SQL Server system-versioned table metadata.
type TemporalTable struct {
	HistoryTable string `yaml:"history"`
	PeriodStart  string `yaml:"start"`
	PeriodEnd    string `yaml:"end"`
}

// ModelConfiguration is the explicit, pre-convention configuration keyed by
// type name.
type ModelConfiguration struct {
	types          map[string]TypeConfigurationType
	tables         map[string]string
	temporal       map[string]TemporalTable
	discriminators map[string]string
}

func NewModelConfiguration() *ModelConfiguration {
	return &ModelConfiguration{
		types:          make(map[string]TypeConfigurationType),
		tables:         make(map[string]string),
		temporal:       make(map[string]TemporalTable),
		discriminators: make(map[string]string),
	}
}

func (c *ModelConfiguration) Configure(typeName string, kind TypeConfigurationType) *ModelConfiguration {
	c.types[typeName] = kind
	return c
}

func (c *ModelConfiguration) ToTable(typeName, table string) *ModelConfiguration {
	c.tables[typeName] = table
	return c
}

func (c *ModelConfiguration) IsTemporal(typeName string, table TemporalTable) *ModelConfiguration {
	c.temporal[typeName] = table
	return c
}

func (c *ModelConfiguration) HasDiscriminator(typeName, value string) *ModelConfiguration {
	c.discriminators[typeName] = value
	return c
}

// GetConfigurationType returns zero when the type is not configured.
func (c *ModelConfiguration) GetConfigurationType(typeName string) TypeConfigurationType {
	if c == nil {
		return 0
	}
	return c.types[typeName]
}

func (c *ModelConfiguration) FindTable(typeName string) (string, bool) {
	if c == nil {
		return "", false
	}
	t, ok := c.tables[typeName]
	return t, ok
}

func (c *ModelConfiguration) FindTemporal(typeName string) (TemporalTable, bool) {
	if c == nil {
		return TemporalTable{}, false
	}
	t, ok := c.temporal[typeName]
	return t, ok
}

func (c *ModelConfiguration) FindDiscriminator(typeName string) (string, bool) {
	if c == nil {
		return "", false
	}
	d, ok := c.discriminators[typeName]
	return d, ok
}

// ConfiguredTypes returns configured type names ordered by name.
func (c *ModelConfiguration) ConfiguredTypes() []string {
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
