package services

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
)

// PropertySync keeps item_properties equal to the set of filters bound to
// each item's category. Every method runs inside the caller's transaction.
type PropertySync struct{}

// ItemCreated gives a new item one empty property per bound filter.
func (PropertySync) ItemCreated(tx *gorm.DB, item *models.Item) error {
	filterIDs, err := boundFilterIDs(tx, item.CategoryID)
	if err != nil {
		return err
	}
	return ensureProperties(tx, item.ID, filterIDs)
}

// ItemMoved reconciles properties after an item changed category. Properties
// of filters no longer bound are deleted, surviving ones lose their value
// since values are scoped per category, and missing ones are created.
func (PropertySync) ItemMoved(tx *gorm.DB, itemID, oldCategoryID, newCategoryID uuid.UUID) error {
	filterIDs, err := boundFilterIDs(tx, newCategoryID)
	if err != nil {
		return err
	}
	if oldCategoryID == newCategoryID {
		return ensureProperties(tx, itemID, filterIDs)
	}

	stale := tx.Where("item_id = ?", itemID)
	if len(filterIDs) > 0 {
		stale = stale.Where("filter_id NOT IN ?", filterIDs)
	}
	if err := stale.Delete(&models.ItemProperty{}).Error; err != nil {
		return err
	}

	if len(filterIDs) > 0 {
		if err := tx.Model(&models.ItemProperty{}).
			Where("item_id = ? AND filter_id IN ?", itemID, filterIDs).
			Update("value_id", nil).Error; err != nil {
			return err
		}
	}

	return ensureProperties(tx, itemID, filterIDs)
}

// BindingAdded creates the property for filterID on every item of the category.
func (PropertySync) BindingAdded(tx *gorm.DB, categoryID, filterID uuid.UUID) error {
	itemIDs, err := categoryItemIDs(tx, categoryID)
	if err != nil || len(itemIDs) == 0 {
		return err
	}

	var covered []uuid.UUID
	if err := tx.Model(&models.ItemProperty{}).
		Where("filter_id = ? AND item_id IN ?", filterID, itemIDs).
		Pluck("item_id", &covered).Error; err != nil {
		return err
	}
	has := toSet(covered)

	var missing []models.ItemProperty
	for _, itemID := range itemIDs {
		if _, ok := has[itemID]; ok {
			continue
		}
		missing = append(missing, models.ItemProperty{ItemID: itemID, FilterID: filterID})
	}
	if len(missing) == 0 {
		return nil
	}
	return tx.Create(&missing).Error
}

// BindingRemoved deletes the filterID properties of the category's items.
func (PropertySync) BindingRemoved(tx *gorm.DB, categoryID, filterID uuid.UUID) error {
	itemIDs, err := categoryItemIDs(tx, categoryID)
	if err != nil || len(itemIDs) == 0 {
		return err
	}
	return tx.Where("filter_id = ? AND item_id IN ?", filterID, itemIDs).
		Delete(&models.ItemProperty{}).Error
}

// BindingRetargeted points the category's properties at the new filter and
// clears their values.
func (p PropertySync) BindingRetargeted(tx *gorm.DB, categoryID, oldFilterID, newFilterID uuid.UUID) error {
	if oldFilterID == newFilterID {
		return nil
	}

	itemIDs, err := categoryItemIDs(tx, categoryID)
	if err != nil || len(itemIDs) == 0 {
		return err
	}

	if err := tx.Model(&models.ItemProperty{}).
		Where("filter_id = ? AND item_id IN ?", oldFilterID, itemIDs).
		Updates(map[string]interface{}{"filter_id": newFilterID, "value_id": nil}).Error; err != nil {
		return err
	}

	return p.BindingAdded(tx, categoryID, newFilterID)
}

func boundFilterIDs(tx *gorm.DB, categoryID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.Model(&models.CategoryFilter{}).Where("category_id = ?", categoryID).Pluck("filter_id", &ids).Error
	return ids, err
}

func categoryItemIDs(tx *gorm.DB, categoryID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.Model(&models.Item{}).Where("category_id = ?", categoryID).Pluck("id", &ids).Error
	return ids, err
}

func ensureProperties(tx *gorm.DB, itemID uuid.UUID, filterIDs []uuid.UUID) error {
	if len(filterIDs) == 0 {
		return nil
	}

	var existing []uuid.UUID
	if err := tx.Model(&models.ItemProperty{}).Where("item_id = ?", itemID).Pluck("filter_id", &existing).Error; err != nil {
		return err
	}
	has := toSet(existing)

	var missing []models.ItemProperty
	for _, filterID := range filterIDs {
		if _, ok := has[filterID]; ok {
			continue
		}
		has[filterID] = struct{}{}
		missing = append(missing, models.ItemProperty{ItemID: itemID, FilterID: filterID})
	}
	if len(missing) == 0 {
		return nil
	}
	return tx.Create(&missing).Error
}

func toSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
