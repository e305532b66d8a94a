package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnedColumnsArePrefixed(t *testing.T) {
	catalog := newTestCatalog(t)
	order, _ := catalog.Lookup("Order")
	address, _ := catalog.Lookup("Address")
	m := NewModel()
	orderType, err := m.AddEntityType(order, Explicit)
	require.NoError(t, err)
	id, err := orderType.AddProperty("Id", TypeInt, false, false, Convention)
	require.NoError(t, err)
	orderType.SetPrimaryKey(id)
	orderType.SetTable("Orders")

	addressType, err := m.AddOwnedEntityType(address, orderType, "ShippingAddress", Convention)
	require.NoError(t, err)
	assert.Equal(t, "Order.ShippingAddress#Address", addressType.Name())
	ownerKey, err := addressType.AddProperty("OrderId", TypeInt, false, true, Convention)
	require.NoError(t, err)
	addressType.SetPrimaryKey(ownerKey)
	city, err := addressType.AddProperty("City", TypeString, true, false, Convention)
	require.NoError(t, err)

	fk, err := m.AddForeignKey(addressType, orderType, []*Property{ownerKey}, true, true)
	require.NoError(t, err)
	_, err = orderType.AddNavigation("ShippingAddress", addressType, false, fk, false)
	require.NoError(t, err)

	assert.Equal(t, "Orders", addressType.Table())
	assert.Equal(t, "ShippingAddress_City", city.ColumnName())
	assert.Equal(t, "Id", ownerKey.ColumnName())
	assert.Equal(t, Ownership, fk.Kind())
	assert.Same(t, orderType, addressType.RootOwner())
}

func TestTemporalIsInheritedByOwnedTypes(t *testing.T) {
	catalog := newTestCatalog(t)
	order, _ := catalog.Lookup("Order")
	address, _ := catalog.Lookup("Address")
	m := NewModel()
	orderType, _ := m.AddEntityType(order, Explicit)
	orderType.SetTemporal(TemporalTable{HistoryTable: "OrdersHistory", PeriodStart: "From", PeriodEnd: "To"})
	addressType, _ := m.AddOwnedEntityType(address, orderType, "ShippingAddress", Convention)

	assert.True(t, addressType.IsTemporal())
	tt, ok := addressType.Temporal()
	require.True(t, ok)
	assert.Equal(t, "OrdersHistory", tt.HistoryTable)
}

func TestFinalizedModelIsReadOnly(t *testing.T) {
	catalog := newTestCatalog(t)
	order, _ := catalog.Lookup("Order")
	customer, _ := catalog.Lookup("Customer")
	m := NewModel()
	orderType, _ := m.AddEntityType(order, Explicit)
	m.Finalize()

	assert.NotEmpty(t, m.Version())
	_, err := m.AddEntityType(customer, Explicit)
	assert.ErrorIs(t, err, ErrReadOnlyModel)
	_, err = orderType.AddProperty("Id", TypeInt, false, false, Convention)
	assert.ErrorIs(t, err, ErrReadOnlyModel)
}

func TestDuplicateMembers(t *testing.T) {
	catalog := newTestCatalog(t)
	order, _ := catalog.Lookup("Order")
	m := NewModel()
	orderType, _ := m.AddEntityType(order, Explicit)
	_, err := orderType.AddProperty("Id", TypeInt, false, false, Convention)
	require.NoError(t, err)
	_, err = orderType.AddProperty("Id", TypeInt, false, false, Convention)
	assert.ErrorIs(t, err, ErrDuplicateMember)

	_, err = m.AddEntityType(order, Explicit)
	assert.ErrorIs(t, err, ErrEntityTypeExists)
}

func TestModelVersionIsStable(t *testing.T) {
	build := func() *Model {
		catalog := newTestCatalog(t)
		order, _ := catalog.Lookup("Order")
		m := NewModel()
		et, _ := m.AddEntityType(order, Explicit)
		_, _ = et.AddProperty("Id", TypeInt, false, false, Convention)
		return m.Finalize()
	}
	assert.Equal(t, build().Version(), build().Version())
}

func TestPropertiesFollowDeclarationOrder(t *testing.T) {
	catalog := newTestCatalog(t)
	customer, _ := catalog.Lookup("Customer")
	m := NewModel()
	et, err := m.AddEntityType(customer, Explicit)
	require.NoError(t, err)

	_, err = et.AddProperty("Version", TypeInt, false, true, Convention)
	require.NoError(t, err)
	_, err = et.AddProperty("Name", TypeString, true, false, Convention)
	require.NoError(t, err)
	_, err = et.AddProperty("Id", TypeInt, false, false, Convention)
	require.NoError(t, err)
	_, err = et.AddProperty("Tenant", TypeString, false, true, Convention)
	require.NoError(t, err)

	names := make([]string, 0, len(et.Properties()))
	for _, p := range et.Properties() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"Id", "Name", "Version", "Tenant"}, names)
}
