package testutils

import (
	"bytes"
	_ "embed"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata/conventions"
)

var (
	//go:embed shop.yaml
	shopSchema []byte
	//go:embed family.yaml
	familySchema []byte
)

// NewShopModel builds the relational model of customers, their orders and
// reviews. Customers and orders are system-versioned when temporal is set.
func NewShopModel(mappings metadata.TypeMappingSource, temporal bool) (*metadata.Model, error) {
	convs := conventions.DefaultConventions()
	if !temporal {
		filtered := convs[:0]
		for _, c := range convs {
			if _, ok := c.(conventions.TemporalConvention); !ok {
				filtered = append(filtered, c)
			}
		}
		convs = filtered
	}
	return buildModel(shopSchema, mappings, convs)
}

// NewFamilyModel builds the document model of families embedding their
// address and children.
func NewFamilyModel(mappings metadata.TypeMappingSource) (*metadata.Model, error) {
	return buildModel(familySchema, mappings, conventions.CosmosConventions())
}

func buildModel(data []byte, mappings metadata.TypeMappingSource, convs []conventions.Convention) (*metadata.Model, error) {
	schema, err := metadata.LoadSchema(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	catalog, err := schema.Catalog()
	if err != nil {
		return nil, err
	}
	logger, _ := test.NewNullLogger()
	return conventions.NewModelBuilder(mappings, nil, logger).Build(catalog, schema.Configuration(), convs...)
}
