package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
)

// ImportService records stock deliveries. Each line adds its quantity to
// the item once, when the line is created.
type ImportService struct {
	db     *gorm.DB
	ledger *InventoryLedger
}

// NewImportService constructs ImportService.
func NewImportService(db *gorm.DB) *ImportService {
	return &ImportService{db: db, ledger: NewInventoryLedger(db)}
}

// ImportLine is one delivered (item, quantity) pair.
type ImportLine struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"gt=0"`
}

// Create stores an import with its lines and adds their quantities to stock.
func (s *ImportService) Create(ctx context.Context, name string, lines []ImportLine) (*models.Import, error) {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: import line quantity %d", ErrInvalidQuantity, line.Quantity)
		}
		if _, dup := seen[line.ItemID]; dup {
			return nil, fmt.Errorf("%w: item %s listed twice in one import", ErrDuplicateKey, line.ItemID)
		}
		seen[line.ItemID] = struct{}{}
	}

	record := &models.Import{Name: strings.TrimSpace(name)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			if err := tx.Select("id").First(&models.Item{}, "id = ?", line.ItemID).Error; err != nil {
				return err
			}
		}

		if err := tx.Omit("Items").Create(record).Error; err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := s.addLine(tx, record.ID, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Import] %q received %d lines", record.Name, len(lines))
	return s.Get(ctx, record.ID)
}

// AddItem appends a line to an existing import.
func (s *ImportService) AddItem(ctx context.Context, importID uuid.UUID, line ImportLine) (*models.ImportItem, error) {
	if line.Quantity <= 0 {
		return nil, fmt.Errorf("%w: import line quantity %d", ErrInvalidQuantity, line.Quantity)
	}

	var importItem *models.ImportItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Import{}, "id = ?", importID).Error; err != nil {
			return err
		}
		if err := tx.Select("id").First(&models.Item{}, "id = ?", line.ItemID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.ImportItem{}).
			Where("import_id = ? AND item_id = ?", importID, line.ItemID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: item %s already in import", ErrDuplicateKey, line.ItemID)
		}

		var err error
		importItem, err = s.addLine(tx, importID, line)
		return err
	})
	if err != nil {
		return nil, err
	}
	return importItem, nil
}

func (s *ImportService) addLine(tx *gorm.DB, importID uuid.UUID, line ImportLine) (*models.ImportItem, error) {
	importItem := &models.ImportItem{
		ImportID: importID,
		ItemID:   line.ItemID,
		Quantity: line.Quantity,
	}
	if err := tx.Omit("Item").Create(importItem).Error; err != nil {
		return nil, err
	}
	if _, err := s.ledger.Adjust(tx, line.ItemID, line.Quantity, models.MovementImport, &importID); err != nil {
		return nil, err
	}
	return importItem, nil
}

// DeleteItem removes an import line. Stock already added stays.
func (s *ImportService) DeleteItem(ctx context.Context, importItemID uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.ImportItem{}, "id = ?", importItemID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Get loads an import with its lines.
func (s *ImportService) Get(ctx context.Context, id uuid.UUID) (*models.Import, error) {
	var record models.Import
	if err := s.db.WithContext(ctx).
		Preload("Items.Item").
		First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns a page of imports, newest first.
func (s *ImportService) List(ctx context.Context, limit, offset int) ([]models.Import, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Import{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.Import
	err := query.Preload("Items").Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error
	return records, total, err
}
