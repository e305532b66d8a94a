package metadata

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Schema is the YAML description of an object graph and its explicit
// configuration.
//
//	types:
//	  - name: Order
//	    members:
//	      - {name: Id, type: int}
//	      - {name: Lines, type: "[]OrderLine"}
//	entities:
//	  Order: {table: Orders, temporal: {history: OrdersHistory, start: PeriodStart, end: PeriodEnd}}
//	owned: [Address]
type Schema struct {
	Types      []TypeDescriptor        `yaml:"types"`
	Entities   map[string]EntityConfig `yaml:"entities"`
	Owned      []string                `yaml:"owned"`
	Ignored    []string                `yaml:"ignored"`
	Properties []string                `yaml:"properties"`
	Services   []string                `yaml:"services"`
}

type EntityConfig struct {
	Table         string         `yaml:"table"`
	Owned         bool           `yaml:"owned"`
	Temporal      *TemporalTable `yaml:"temporal"`
	Discriminator string         `yaml:"discriminator"`
}

func LoadSchema(r io.Reader) (*Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "unable to decode schema")
	}
	return &s, nil
}

func LoadSchemaFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open schema %q", path)
	}
	defer f.Close()
	return LoadSchema(f)
}

func (s *Schema) Catalog() (*TypeCatalog, error) {
	c := NewTypeCatalog()
	var result error
	for _, t := range s.Types {
		if err := c.Register(t); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, t := range s.Types {
		for _, m := range t.Members {
			if _, ok := c.Lookup(m.Type); !ok {
				result = multierror.Append(result, errors.Wrapf(ErrUnknownType, "%s.%s: %q", t.Name, m.Name, m.Type))
			}
		}
	}
	return c, result
}

func (s *Schema) Configuration() *ModelConfiguration {
	c := NewModelConfiguration()
	names := make([]string, 0, len(s.Entities))
	for name := range s.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e := s.Entities[name]
		if e.Owned {
			c.Configure(name, OwnedEntityTypeConfiguration)
		} else {
			c.Configure(name, EntityTypeConfiguration)
		}
		if e.Table != "" {
			c.ToTable(name, e.Table)
		}
		if e.Temporal != nil {
			c.IsTemporal(name, *e.Temporal)
		}
		if e.Discriminator != "" {
			c.HasDiscriminator(name, e.Discriminator)
		}
	}
	for _, name := range s.Owned {
		c.Configure(name, OwnedEntityTypeConfiguration)
	}
	for _, name := range s.Properties {
		c.Configure(name, PropertyConfiguration)
	}
	for _, name := range s.Services {
		c.Configure(name, ServicePropertyConfiguration)
	}
	for _, name := range s.Ignored {
		c.Configure(name, IgnoredConfiguration)
	}
	return c
}

type memberYAML struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Sequence bool   `yaml:"sequence"`
	Nullable bool   `yaml:"nullable"`
	Readable *bool  `yaml:"readable"`
	Writable *bool  `yaml:"writable"`
	Public   *bool  `yaml:"public"`
}

// UnmarshalYAML defaults access flags to true and understands the "[]T" and
// "*T" shorthands.
func (m *MemberDescriptor) UnmarshalYAML(value *yaml.Node) error {
	var raw memberYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Name == "" || raw.Type == "" {
		return errors.Errorf("line %d: member name and type are required", value.Line)
	}
	*m = MemberDescriptor{
		Name:     raw.Name,
		Type:     raw.Type,
		Sequence: raw.Sequence,
		Nullable: raw.Nullable,
		Readable: boolOr(raw.Readable, true),
		Writable: boolOr(raw.Writable, true),
		Public:   boolOr(raw.Public, true),
	}
	if strings.HasPrefix(m.Type, "*") {
		m.Type = m.Type[1:]
		m.Nullable = true
	}
	if strings.HasPrefix(m.Type, "[]") && m.Type != TypeBytes {
		m.Type = m.Type[2:]
		m.Sequence = true
	}
	return nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
