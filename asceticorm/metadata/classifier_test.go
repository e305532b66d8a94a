package metadata

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMappings = NewMappingTable(map[string]string{
	TypeString: "TEXT",
	TypeInt:    "INTEGER",
	TypeTime:   "TEXT",
	"[]string": "TEXT",
})

func newTestCatalog(t *testing.T) *TypeCatalog {
	c := NewTypeCatalog()
	require.NoError(t, c.Register(TypeDescriptor{
		Name: "Order",
		Members: []MemberDescriptor{
			Member("Id", TypeInt),
			Member("Customer", "Customer"),
			SequenceMember("Lines", "OrderLine"),
			Member("ShippingAddress", "Address"),
			SequenceMember("Tags", TypeString),
			Member("Context", "DbContext"),
			{Name: "Audit", Type: "Audit", Readable: true, Public: true},
		},
	}))
	require.NoError(t, c.Register(TypeDescriptor{Name: "Customer", Members: []MemberDescriptor{
		Member("Id", TypeInt), Member("Name", TypeString),
	}}))
	require.NoError(t, c.Register(TypeDescriptor{Name: "OrderLine", Members: []MemberDescriptor{
		Member("Id", TypeInt),
	}}))
	require.NoError(t, c.Register(TypeDescriptor{Name: "Address", Members: []MemberDescriptor{
		Member("City", TypeString),
	}}))
	require.NoError(t, c.Register(TypeDescriptor{Name: "Audit"}))
	require.NoError(t, c.Register(TypeDescriptor{Name: "DbContext"}))
	return c
}

func newTestClassifier(t *testing.T, cfg *ModelConfiguration) (*MemberClassifier, *TypeCatalog) {
	catalog := newTestCatalog(t)
	factories := NewParameterBindingFactories(ServiceBindingFactory{TypeName: "DbContext"})
	return NewMemberClassifier(catalog, cfg, testMappings, factories), catalog
}

func candidateNames(candidates []NavigationCandidate) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Member.Name
	}
	return names
}

func TestNavigationCandidatesAreSortedByName(t *testing.T) {
	cfg := NewModelConfiguration().Configure("Address", OwnedEntityTypeConfiguration)
	classifier, catalog := newTestClassifier(t, cfg)
	order, _ := catalog.Lookup("Order")
	et, err := NewModel().AddEntityType(order, Explicit)
	require.NoError(t, err)

	candidates := classifier.GetNavigationCandidates(et)

	// Audit is read-only, Tags has a store mapping, Context is a service.
	assert.Equal(t, []string{"Customer", "Lines", "ShippingAddress"}, candidateNames(candidates))
	assert.True(t, candidates[0].ShouldBeOwned.IsNothing())
	assert.Equal(t, "OrderLine", candidates[1].TargetType.Name)
	assert.True(t, candidates[2].ShouldBeOwned.UnwrapOr(false))
}

func TestNavigationCandidatesAreMemoized(t *testing.T) {
	classifier, catalog := newTestClassifier(t, NewModelConfiguration())
	order, _ := catalog.Lookup("Order")
	et, err := NewModel().AddEntityType(order, Explicit)
	require.NoError(t, err)

	first := classifier.GetNavigationCandidates(et)
	stored, ok := et.FindAnnotation(NavigationCandidatesAnnotation)
	require.True(t, ok)
	assert.Equal(t, first, stored)

	// A sentinel annotation proves the second call does not recompute.
	et.SetAnnotation(NavigationCandidatesAnnotation, []NavigationCandidate{})
	assert.Empty(t, classifier.GetNavigationCandidates(et))
}

func TestNavigationCandidatesConcurrentFirstCall(t *testing.T) {
	classifier, catalog := newTestClassifier(t, NewModelConfiguration())
	order, _ := catalog.Lookup("Order")
	et, err := NewModel().AddEntityType(order, Explicit)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]NavigationCandidate, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = classifier.GetNavigationCandidates(et)
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestNavigationCandidatesOfReadOnlyModelAreNotStored(t *testing.T) {
	classifier, catalog := newTestClassifier(t, NewModelConfiguration())
	order, _ := catalog.Lookup("Order")
	model := NewModel()
	et, err := model.AddEntityType(order, Explicit)
	require.NoError(t, err)
	model.Finalize()

	candidates := classifier.GetNavigationCandidates(et)
	assert.Len(t, candidates, 3)
	_, ok := et.FindAnnotation(NavigationCandidatesAnnotation)
	assert.False(t, ok)
}

func TestFindCandidateNavigationPropertyType(t *testing.T) {
	cfg := NewModelConfiguration().
		Configure("Customer", EntityTypeConfiguration).
		Configure("Audit", IgnoredConfiguration)
	classifier, _ := newTestClassifier(t, cfg)

	target, owned := classifier.FindCandidateNavigationPropertyType(Member("Customer", "Customer"))
	require.NotNil(t, target)
	assert.Equal(t, "Customer", target.Name)
	assert.False(t, owned.Unwrap())

	target, _ = classifier.FindCandidateNavigationPropertyType(Member("Audit", "Audit"))
	assert.Nil(t, target)

	target, _ = classifier.FindCandidateNavigationPropertyType(Member("Name", TypeString))
	assert.Nil(t, target)

	target, _ = classifier.FindCandidateNavigationPropertyType(Member("Context", "DbContext"))
	assert.Nil(t, target)

	readOnlySequence := SequenceMember("Lines", "OrderLine")
	readOnlySequence.Writable = false
	target, _ = classifier.FindCandidateNavigationPropertyType(readOnlySequence)
	assert.NotNil(t, target)

	private := Member("Customer", "Customer")
	private.Public = false
	target, _ = classifier.FindCandidateNavigationPropertyType(private)
	assert.Nil(t, target)
}

func TestConfiguredEntityTypeQualifiesOutright(t *testing.T) {
	cfg := NewModelConfiguration().Configure("DbContext", OwnedEntityTypeConfiguration)
	classifier, _ := newTestClassifier(t, cfg)

	// The binding factory for DbContext no longer applies once configured.
	target, owned := classifier.FindCandidateNavigationPropertyType(Member("Context", "DbContext"))
	require.NotNil(t, target)
	assert.True(t, owned.Unwrap())
}

func TestConfiguredScalarIsNotNavigation(t *testing.T) {
	cfg := NewModelConfiguration().Configure(TypeInt, EntityTypeConfiguration)
	classifier, _ := newTestClassifier(t, cfg)

	target, owned := classifier.FindCandidateNavigationPropertyType(Member("Id", TypeInt))
	assert.Nil(t, target)
	assert.True(t, owned.IsNothing())
}

func TestBindingFactoryIsFoundByMemberType(t *testing.T) {
	catalog := newTestCatalog(t)
	factories := NewParameterBindingFactories(ServiceBindingFactory{TypeName: "[]Customer"})
	classifier := NewMemberClassifier(catalog, NewModelConfiguration(), testMappings, factories)

	target, _ := classifier.FindCandidateNavigationPropertyType(SequenceMember("Customers", "Customer"))
	assert.Nil(t, target)

	target, _ = classifier.FindCandidateNavigationPropertyType(Member("Customer", "Customer"))
	require.NotNil(t, target)
	assert.Equal(t, "Customer", target.Name)
}

func TestIsCandidatePrimitiveProperty(t *testing.T) {
	cfg := NewModelConfiguration().
		Configure("Money", PropertyConfiguration).
		Configure(TypeInt, IgnoredConfiguration)
	classifier, _ := newTestClassifier(t, cfg)

	assert.True(t, classifier.IsCandidatePrimitiveProperty(Member("Name", TypeString)))
	assert.True(t, classifier.IsCandidatePrimitiveProperty(Member("Price", "Money")))
	assert.True(t, classifier.IsCandidatePrimitiveProperty(SequenceMember("Tags", TypeString)))
	assert.False(t, classifier.IsCandidatePrimitiveProperty(Member("Id", TypeInt)))
	assert.False(t, classifier.IsCandidatePrimitiveProperty(Member("Customer", "Customer")))
}

func TestFindServicePropertyCandidateBindingFactory(t *testing.T) {
	classifier, _ := newTestClassifier(t, NewModelConfiguration())

	f := classifier.FindServicePropertyCandidateBindingFactory(Member("Context", "DbContext"))
	require.NotNil(t, f)
	assert.Equal(t, "DbContext", f.ServiceType())

	assert.Nil(t, classifier.FindServicePropertyCandidateBindingFactory(Member("Name", TypeString)))

	cfg := NewModelConfiguration().Configure("DbContext", EntityTypeConfiguration)
	classifier, _ = newTestClassifier(t, cfg)
	assert.Nil(t, classifier.FindServicePropertyCandidateBindingFactory(Member("Context", "DbContext")))
}
