package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/eshop/internal/models"
)

func TestPropertiesFollowBindings(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	color := f.filter("Color")
	binding := f.bind(phones.ID, color.ID)

	x := f.item(phones.ID, "X", "100", 1)
	require.Equal(t, f.boundFilters(phones.ID), f.propertyFilters(x.ID))
	assert.Nil(t, f.property(x.ID, color.ID).ValueID)

	require.NoError(t, f.filters.Unbind(f.ctx, binding.ID))
	assert.Empty(t, f.propertyFilters(x.ID))
	assert.Empty(t, f.boundFilters(phones.ID))
}

func TestBindingAddedCoversExistingItems(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	a := f.item(phones.ID, "A", "1", 0)
	b := f.item(phones.ID, "B", "1", 0)
	assert.Empty(t, f.propertyFilters(a.ID))

	color := f.filter("Color")
	memory := f.filter("Memory")
	f.bind(phones.ID, color.ID)
	f.bind(phones.ID, memory.ID)

	for _, item := range []*models.Item{a, b} {
		assert.Equal(t, f.boundFilters(phones.ID), f.propertyFilters(item.ID))
	}

	// Running the trigger again must not duplicate properties.
	require.NoError(t, PropertySync{}.BindingAdded(f.db, phones.ID, color.ID))
	assert.Equal(t, int64(4), f.count(&models.ItemProperty{}, ""))

	_, err := f.filters.Bind(f.ctx, phones.ID, color.ID)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestBindRequiresLeafCategory(t *testing.T) {
	f := newFixture(t)
	root := f.node("Root", nil)
	color := f.filter("Color")

	_, err := f.filters.Bind(f.ctx, root.ID, color.ID)
	assert.ErrorIs(t, err, ErrHierarchyType)

	_, err = f.filters.CreateValue(f.ctx, root.ID, color.ID, "Red")
	assert.ErrorIs(t, err, ErrHierarchyType)
}

func TestRebindRetargetsPropertiesAndClearsValues(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	color := f.filter("Color")
	shade := f.filter("Shade")
	binding := f.bind(phones.ID, color.ID)
	red := f.value(phones.ID, color.ID, "Red")
	x := f.item(phones.ID, "X", "100", 1)
	_, err := f.items.SetProperty(f.ctx, x.ID, color.ID, &red.ID)
	require.NoError(t, err)

	rebound, err := f.filters.Rebind(f.ctx, binding.ID, shade.ID)
	require.NoError(t, err)
	assert.Equal(t, shade.ID, rebound.FilterID)

	assert.Equal(t, []string{shade.ID.String()}, f.propertyFilters(x.ID))
	assert.Nil(t, f.property(x.ID, shade.ID).ValueID)
	assert.Equal(t, f.boundFilters(phones.ID), f.propertyFilters(x.ID))

	// Binding color again starts from an empty value list.
	assert.Equal(t, int64(0), f.count(&models.CategoryFilterValue{}, "filter_id = ?", color.ID))
	f.bind(phones.ID, color.ID)
	views, err := f.filters.CategoryFilters(f.ctx, phones.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, view := range views {
		assert.Empty(t, view.Values, view.Filter.Name)
	}
}

func TestItemTriggersAreIdempotent(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	color := f.filter("Color")
	memory := f.filter("Memory")
	f.bind(phones.ID, color.ID)
	f.bind(phones.ID, memory.ID)
	red := f.value(phones.ID, color.ID, "Red")
	x := f.item(phones.ID, "X", "100", 1)
	_, err := f.items.SetProperty(f.ctx, x.ID, color.ID, &red.ID)
	require.NoError(t, err)
	synced := f.propertyFilters(x.ID)

	for i := 0; i < 2; i++ {
		require.NoError(t, PropertySync{}.ItemCreated(f.db, x))
	}
	assert.Equal(t, synced, f.propertyFilters(x.ID))
	assert.Equal(t, int64(2), f.count(&models.ItemProperty{}, "item_id = ?", x.ID))

	for i := 0; i < 2; i++ {
		require.NoError(t, PropertySync{}.ItemMoved(f.db, x.ID, phones.ID, phones.ID))
	}
	assert.Equal(t, synced, f.propertyFilters(x.ID))
	assert.Equal(t, int64(2), f.count(&models.ItemProperty{}, "item_id = ?", x.ID))

	// Staying in the same category keeps the chosen value.
	property := f.property(x.ID, color.ID)
	require.NotNil(t, property.ValueID)
	assert.Equal(t, red.ID, *property.ValueID)
}

func TestRebindToAlreadyBoundFilterFails(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	color := f.filter("Color")
	shade := f.filter("Shade")
	binding := f.bind(phones.ID, color.ID)
	f.bind(phones.ID, shade.ID)

	_, err := f.filters.Rebind(f.ctx, binding.ID, shade.ID)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestItemMovedReconcilesProperties(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	tablets := f.leaf("Tablets", nil)
	color := f.filter("Color")
	memory := f.filter("Memory")
	screen := f.filter("Screen")

	f.bind(phones.ID, color.ID)
	f.bind(phones.ID, memory.ID)
	f.bind(tablets.ID, color.ID)
	f.bind(tablets.ID, screen.ID)

	red := f.value(phones.ID, color.ID, "Red")
	x := f.item(phones.ID, "X", "100", 1)
	_, err := f.items.SetProperty(f.ctx, x.ID, color.ID, &red.ID)
	require.NoError(t, err)

	_, err = f.items.Update(f.ctx, x.ID, ItemInput{Name: "X", CategoryID: tablets.ID, Price: x.Price})
	require.NoError(t, err)

	assert.Equal(t, f.boundFilters(tablets.ID), f.propertyFilters(x.ID))
	assert.Nil(t, f.property(x.ID, color.ID).ValueID)
	assert.Equal(t, int64(0), f.count(&models.ItemProperty{}, "item_id = ? AND filter_id = ?", x.ID, memory.ID))
}

func TestItemCannotMoveIntoNodeCategory(t *testing.T) {
	f := newFixture(t)
	root := f.node("Root", nil)
	phones := f.leaf("Phones", &root.ID)
	x := f.item(phones.ID, "X", "100", 1)

	_, err := f.items.Update(f.ctx, x.ID, ItemInput{Name: "X", CategoryID: root.ID, Price: x.Price})
	assert.ErrorIs(t, err, ErrHierarchyType)

	_, err = f.items.Create(f.ctx, ItemInput{Name: "Y", CategoryID: root.ID})
	assert.ErrorIs(t, err, ErrHierarchyType)
}

func TestDeleteFilterRemovesEverythingHangingOffIt(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	color := f.filter("Color")
	f.bind(phones.ID, color.ID)
	f.value(phones.ID, color.ID, "Red")
	x := f.item(phones.ID, "X", "100", 1)

	require.NoError(t, f.filters.DeleteFilter(f.ctx, color.ID))

	assert.Empty(t, f.propertyFilters(x.ID))
	assert.Equal(t, int64(0), f.count(&models.CategoryFilter{}, ""))
	assert.Equal(t, int64(0), f.count(&models.CategoryFilterValue{}, ""))
	assert.Equal(t, int64(0), f.count(&models.Filter{}, ""))
}
