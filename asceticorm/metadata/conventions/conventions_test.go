package conventions

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

var mappings = m.NewMappingTable(map[string]string{
	m.TypeString: "TEXT",
	m.TypeInt:    "INTEGER",
	m.TypeTime:   "TEXT",
})

func catalogOf(t *testing.T, types ...m.TypeDescriptor) *m.TypeCatalog {
	c := m.NewTypeCatalog()
	for _, td := range types {
		require.NoError(t, c.Register(td))
	}
	return c
}

func build(t *testing.T, catalog *m.TypeCatalog, cfg *m.ModelConfiguration, conventions ...Convention) *m.Model {
	if len(conventions) == 0 {
		conventions = DefaultConventions()
	}
	logger, _ := test.NewNullLogger()
	model, err := NewModelBuilder(mappings, nil, logger).Build(catalog, cfg, conventions...)
	require.NoError(t, err)
	return model
}

func blogCatalog(t *testing.T) *m.TypeCatalog {
	return catalogOf(t,
		m.TypeDescriptor{Name: "Blog", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.Member("Title", m.TypeString),
			m.SequenceMember("Posts", "Post"),
		}},
		m.TypeDescriptor{Name: "Post", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.Member("BlogId", m.TypeInt),
			m.Member("Blog", "Blog"),
			m.Member("Author", "Author"),
		}},
		m.TypeDescriptor{Name: "Author", Members: []m.MemberDescriptor{
			m.Member("AuthorId", m.TypeInt),
			m.Member("Name", m.TypeString),
		}},
	)
}

func TestOneToManyWithInverse(t *testing.T) {
	model := build(t, blogCatalog(t), m.NewModelConfiguration().Configure("Blog", m.EntityTypeConfiguration))

	blog := model.FindEntityType("Blog")
	post := model.FindEntityType("Post")
	require.NotNil(t, post, "targets are discovered through navigations")

	posts := blog.FindNavigation("Posts")
	require.NotNil(t, posts)
	assert.True(t, posts.IsCollection())
	assert.False(t, posts.IsOnDependent())

	inverse := post.FindNavigation("Blog")
	require.NotNil(t, inverse)
	assert.Same(t, posts, inverse.Inverse())

	fk := posts.ForeignKey()
	assert.Same(t, post, fk.DeclaringEntityType())
	assert.Equal(t, "BlogId", fk.Properties()[0].Name())
	assert.False(t, fk.Properties()[0].IsShadow())
	assert.Equal(t, m.OneToMany, fk.Kind())
	assert.True(t, model.IsReadOnly())
	assert.NoError(t, model.Diagnostics())
}

func TestUnpairedReferenceIsManyToOneWithShadowKey(t *testing.T) {
	model := build(t, blogCatalog(t), m.NewModelConfiguration().Configure("Blog", m.EntityTypeConfiguration))

	post := model.FindEntityType("Post")
	author := post.FindNavigation("Author")
	require.NotNil(t, author)
	assert.True(t, author.IsOnDependent())
	fkProperty := author.ForeignKey().Properties()[0]
	assert.Equal(t, "AuthorId", fkProperty.Name())
	assert.True(t, fkProperty.IsShadow())
	assert.True(t, fkProperty.IsNullable())
	assert.Equal(t, m.ManyToOne, author.ForeignKey().Kind())

	authorType := model.FindEntityType("Author")
	assert.Equal(t, "AuthorId", authorType.FindPrimaryKey().Properties()[0].Name())
}

func TestUnpairedCollectionIsOneToMany(t *testing.T) {
	catalog := catalogOf(t,
		m.TypeDescriptor{Name: "Customer", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.SequenceMember("Orders", "Order"),
		}},
		m.TypeDescriptor{Name: "Order", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
		}},
	)
	model := build(t, catalog, m.NewModelConfiguration().Configure("Customer", m.EntityTypeConfiguration))

	orders := model.FindEntityType("Customer").FindNavigation("Orders")
	require.NotNil(t, orders)
	fk := orders.ForeignKey()
	assert.Equal(t, "Order", fk.DeclaringEntityType().Name())
	assert.Equal(t, "CustomerId", fk.Properties()[0].Name())
	assert.True(t, fk.Properties()[0].IsShadow())
	assert.Equal(t, m.OneToMany, fk.Kind())
}

func TestUnpairedCollectionsGetSeparateForeignKeys(t *testing.T) {
	catalog := catalogOf(t,
		m.TypeDescriptor{Name: "Customer", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.SequenceMember("Orders", "Order"),
			m.SequenceMember("CancelledOrders", "Order"),
		}},
		m.TypeDescriptor{Name: "Order", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.Member("CustomerId", m.TypeInt),
		}},
	)
	model := build(t, catalog, m.NewModelConfiguration().Configure("Customer", m.EntityTypeConfiguration))

	customer := model.FindEntityType("Customer")
	orders := customer.FindNavigation("Orders").ForeignKey().Properties()[0]
	cancelled := customer.FindNavigation("CancelledOrders").ForeignKey().Properties()[0]
	assert.Equal(t, "CustomerId", orders.Name())
	assert.False(t, orders.IsShadow())
	assert.Equal(t, "CustomerId1", cancelled.Name())
	assert.True(t, cancelled.IsShadow())
	assert.NotSame(t, orders, cancelled)

	var names []string
	for _, p := range model.FindEntityType("Order").Properties() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"Id", "CustomerId", "CustomerId1"}, names)
}

func TestOneToOneDependentIsDeclaredSecond(t *testing.T) {
	catalog := catalogOf(t,
		m.TypeDescriptor{Name: "Person", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.Member("Passport", "Passport"),
		}},
		m.TypeDescriptor{Name: "Passport", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.Member("Holder", "Person"),
		}},
	)
	model := build(t, catalog, m.NewModelConfiguration().Configure("Person", m.EntityTypeConfiguration))

	fk := model.FindEntityType("Person").FindNavigation("Passport").ForeignKey()
	assert.Equal(t, "Passport", fk.DeclaringEntityType().Name())
	assert.Equal(t, "HolderId", fk.Properties()[0].Name())
	assert.True(t, fk.IsUnique())
	assert.Equal(t, m.OneToOne, fk.Kind())
}

func TestOneToOneDependentFollowsForeignKeyMember(t *testing.T) {
	catalog := catalogOf(t,
		m.TypeDescriptor{Name: "Person", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.Member("PassportId", m.TypeInt),
			m.Member("Passport", "Passport"),
		}},
		m.TypeDescriptor{Name: "Passport", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.Member("Holder", "Person"),
		}},
	)
	model := build(t, catalog, m.NewModelConfiguration().Configure("Person", m.EntityTypeConfiguration))

	fk := model.FindEntityType("Person").FindNavigation("Passport").ForeignKey()
	assert.Equal(t, "Person", fk.DeclaringEntityType().Name())
	assert.Equal(t, "PassportId", fk.Properties()[0].Name())
}

func TestAmbiguousInverseIsReported(t *testing.T) {
	catalog := catalogOf(t,
		m.TypeDescriptor{Name: "Match", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.Member("Home", "Team"),
			m.Member("Away", "Team"),
		}},
		m.TypeDescriptor{Name: "Team", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.SequenceMember("Matches", "Match"),
		}},
	)
	logger, hook := test.NewNullLogger()
	model, err := NewModelBuilder(mappings, nil, logger).Build(
		catalog, m.NewModelConfiguration().Configure("Match", m.EntityTypeConfiguration), DefaultConventions()...)
	require.NoError(t, err)

	match := model.FindEntityType("Match")
	assert.Nil(t, match.FindNavigation("Home"))
	assert.Nil(t, match.FindNavigation("Away"))
	assert.Equal(t, []string{"Away", "Home"}, AmbiguousNavigations(match))
	assert.Equal(t, []string{"Matches"}, AmbiguousNavigations(model.FindEntityType("Team")))
	assert.ErrorIs(t, model.Diagnostics(), ErrAmbiguousNavigation)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSelfReference(t *testing.T) {
	catalog := catalogOf(t,
		m.TypeDescriptor{Name: "Employee", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.Member("Manager", "Employee"),
			m.SequenceMember("Reports", "Employee"),
		}},
	)
	model := build(t, catalog, m.NewModelConfiguration().Configure("Employee", m.EntityTypeConfiguration))

	employee := model.FindEntityType("Employee")
	manager := employee.FindNavigation("Manager")
	require.NotNil(t, manager)
	assert.Same(t, employee.FindNavigation("Reports"), manager.Inverse())
	assert.Equal(t, "ManagerId", manager.ForeignKey().Properties()[0].Name())
}

func orderCatalog(t *testing.T) *m.TypeCatalog {
	return catalogOf(t,
		m.TypeDescriptor{Name: "Order", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.Member("ShippingAddress", "Address"),
			m.SequenceMember("Lines", "OrderLine"),
			m.Member("Customer", "Customer"),
		}},
		m.TypeDescriptor{Name: "Address", Members: []m.MemberDescriptor{
			m.Member("City", m.TypeString),
		}},
		m.TypeDescriptor{Name: "OrderLine", Members: []m.MemberDescriptor{
			m.Member("Product", m.TypeString),
			m.Member("Quantity", m.TypeInt),
		}},
		m.TypeDescriptor{Name: "Customer", Members: []m.MemberDescriptor{
			m.Member("Id", m.TypeInt),
			m.Member("Name", m.TypeString),
		}},
	)
}

func TestConfiguredOwnedTypeIsTableSplit(t *testing.T) {
	cfg := m.NewModelConfiguration().
		Configure("Order", m.EntityTypeConfiguration).
		Configure("Address", m.OwnedEntityTypeConfiguration).
		ToTable("Order", "Orders")
	model := build(t, orderCatalog(t), cfg)

	order := model.FindEntityType("Order")
	nav := order.FindNavigation("ShippingAddress")
	require.NotNil(t, nav)
	assert.True(t, nav.IsOwned())
	address := nav.TargetType()
	assert.True(t, address.IsOwned())
	assert.Equal(t, "Orders", address.Table())
	assert.Equal(t, "ShippingAddress_City", address.FindProperty("City").ColumnName())
	assert.Equal(t, "Id", address.FindPrimaryKey().Properties()[0].ColumnName())
	assert.Nil(t, model.FindEntityType("Address"))

	assert.False(t, order.FindNavigation("Lines").IsOwned())
	assert.False(t, order.FindNavigation("Customer").IsOwned())
}

func TestCosmosOwnsEveryDiscoveredTarget(t *testing.T) {
	cfg := m.NewModelConfiguration().Configure("Order", m.EntityTypeConfiguration)
	model := build(t, orderCatalog(t), cfg, CosmosConventions()...)

	order := model.FindEntityType("Order")
	for _, name := range []string{"ShippingAddress", "Lines", "Customer"} {
		nav := order.FindNavigation(name)
		require.NotNil(t, nav, name)
		assert.True(t, nav.IsOwned(), name)
	}
	assert.True(t, order.FindNavigation("Lines").TargetType().IsCollectionOwned())
	assert.Nil(t, model.FindEntityType("Customer"))
}

func TestCosmosKeepsExplicitEntityTypes(t *testing.T) {
	cfg := m.NewModelConfiguration().
		Configure("Order", m.EntityTypeConfiguration).
		Configure("Customer", m.EntityTypeConfiguration)
	model := build(t, orderCatalog(t), cfg, CosmosConventions()...)

	customer := model.FindEntityType("Order").FindNavigation("Customer")
	require.NotNil(t, customer)
	assert.False(t, customer.IsOwned())
}

func TestTemporalConventionAddsPeriodProperties(t *testing.T) {
	cfg := m.NewModelConfiguration().
		Configure("Customer", m.EntityTypeConfiguration).
		IsTemporal("Customer", m.TemporalTable{HistoryTable: "CustomerHistory"})
	model := build(t, orderCatalog(t), cfg)

	customer := model.FindEntityType("Customer")
	assert.True(t, customer.IsTemporal())
	start := customer.FindProperty("PeriodStart")
	require.NotNil(t, start)
	assert.True(t, start.IsShadow())
	assert.Equal(t, "TEXT", start.TypeMapping().StoreType)
}

func TestMissingTypeMappingIsDiagnosed(t *testing.T) {
	catalog := catalogOf(t, m.TypeDescriptor{Name: "Gadget", Members: []m.MemberDescriptor{
		m.Member("Id", m.TypeInt),
		m.Member("Weight", "Grams"),
	}})
	cfg := m.NewModelConfiguration().
		Configure("Gadget", m.EntityTypeConfiguration).
		Configure("Grams", m.PropertyConfiguration)
	model := build(t, catalog, cfg)

	assert.NotNil(t, model.FindEntityType("Gadget").FindProperty("Weight"))
	assert.ErrorContains(t, model.Diagnostics(), `no store type mapping for Gadget.Weight of type "Grams"`)
}

func TestBuildWithoutEntityTypes(t *testing.T) {
	_, err := NewModelBuilder(mappings, nil, nil).Build(m.NewTypeCatalog(), nil, DefaultConventions()...)
	assert.ErrorIs(t, err, ErrNoEntityTypes)
}
