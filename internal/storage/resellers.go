package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/model"
)

const (
	errorMessageResellerNotFound = "storage: reseller not found"
	errorMessageFindReseller     = "storage: find reseller"
	errorMessageListResellers    = "storage: list resellers"
	errorMessageSaveReseller     = "storage: save reseller"
	errorMessageDeleteReseller   = "storage: delete reseller"
)

// ErrResellerNotFound indicates no reseller carries the requested identifier.
var ErrResellerNotFound = errors.New(errorMessageResellerNotFound)

var resellerUpsertColumns = []string{"nickname", "billing_phone", "url", "updated_at"}

// ResellerRepository reads and writes reseller records.
type ResellerRepository struct {
	database *gorm.DB
}

func NewResellerRepository(database *gorm.DB) *ResellerRepository {
	return &ResellerRepository{database: database}
}

func (repository *ResellerRepository) FindByID(ctx context.Context, identifier uint64) (model.Reseller, error) {
	var reseller model.Reseller
	findErr := repository.database.WithContext(ctx).First(&reseller, "id = ?", identifier).Error
	if errors.Is(findErr, gorm.ErrRecordNotFound) {
		return model.Reseller{}, ErrResellerNotFound
	}
	if findErr != nil {
		return model.Reseller{}, fmt.Errorf("%s: %w", errorMessageFindReseller, findErr)
	}
	return reseller, nil
}

// List returns every reseller ordered by identifier.
func (repository *ResellerRepository) List(ctx context.Context) ([]model.Reseller, error) {
	var resellers []model.Reseller
	if listErr := repository.database.WithContext(ctx).Order("id ASC").Find(&resellers).Error; listErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageListResellers, listErr)
	}
	return resellers, nil
}

// Save inserts the reseller or replaces the contact fields of an existing one.
func (repository *ResellerRepository) Save(ctx context.Context, reseller model.Reseller) (model.Reseller, error) {
	saveErr := repository.database.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(resellerUpsertColumns),
	}).Create(&reseller).Error
	if saveErr != nil {
		return model.Reseller{}, fmt.Errorf("%s: %w", errorMessageSaveReseller, saveErr)
	}
	return repository.FindByID(ctx, reseller.ID)
}

// Delete removes a reseller and reports whether it existed.
func (repository *ResellerRepository) Delete(ctx context.Context, identifier uint64) (bool, error) {
	result := repository.database.WithContext(ctx).Delete(&model.Reseller{}, "id = ?", identifier)
	if result.Error != nil {
		return false, fmt.Errorf("%s: %w", errorMessageDeleteReseller, result.Error)
	}
	return result.RowsAffected > 0, nil
}
