package sqlserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/utils/testutils"
)

func newShopModel(t *testing.T) *metadata.Model {
	t.Helper()
	model, err := testutils.NewShopModel(NewTypeMappingSource(), true)
	require.NoError(t, err)
	return model
}

func TestQueryRootCreator(t *testing.T) {
	model := newShopModel(t)
	customer := model.FindEntityType("Customer")
	order := model.FindEntityType("Order")
	review := model.FindEntityType("Review")
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	creator := QueryRootCreator{}

	t.Run("plain source", func(t *testing.T) {
		source := q.Root(customer)
		root, err := creator.CreateQueryRoot(review, &source)
		require.NoError(t, err)
		assert.True(t, root.Equal(q.Root(review)))
	})

	t.Run("as of is propagated", func(t *testing.T) {
		source := q.TemporalQueryRoot(customer, q.AsOf{PointInTime: at})
		root, err := creator.CreateQueryRoot(order, &source)
		require.NoError(t, err)
		assert.True(t, root.Equal(q.TemporalQueryRoot(order, q.AsOf{PointInTime: at})))
	})

	t.Run("non-temporal target", func(t *testing.T) {
		source := q.TemporalQueryRoot(customer, q.AsOf{PointInTime: at})
		_, err := creator.CreateQueryRoot(review, &source)
		assert.ErrorIs(t, err, ErrNonTemporalNavigation)
		assert.EqualError(t, err, "Temporal query is trying to use navigation to an entity 'Review' which itself "+
			"doesn't map to temporal table. Either map the entity to temporal table or use join manually to access it.")
	})

	t.Run("range operation", func(t *testing.T) {
		source := q.TemporalQueryRoot(customer, q.FromTo(at, at.AddDate(0, 1, 0)))
		_, err := creator.CreateQueryRoot(order, &source)
		assert.ErrorIs(t, err, ErrNavigationExpansion)
		assert.EqualError(t, err, "Navigation expansion is only supported for 'AsOf' temporal operation. "+
			"For other operations use join manually.")
	})

	t.Run("temporal target without source", func(t *testing.T) {
		_, err := creator.CreateQueryRoot(order, nil)
		assert.ErrorIs(t, err, ErrTemporalRootCreation)
		assert.EqualError(t, err, "Couldn't create a temporal query root for the entity type: 'Order'.")

		root, err := creator.CreateQueryRoot(review, nil)
		require.NoError(t, err)
		assert.False(t, root.IsTemporal())
	})
}
