package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/recurware/billing-backend/pkg/db/models"
)

// TypeRepository handles product type persistence.
type TypeRepository interface {
	ListTypes(ctx context.Context) ([]models.ProductType, error)
	CreateType(ctx context.Context, productType *models.ProductType) error
	DeleteType(ctx context.Context, id int64) error
	CountSubscriptionsForType(ctx context.Context, id int64) (int64, error)
	FindTypeByName(ctx context.Context, name string) (*models.ProductType, error)
}

type typeRepository struct {
	db *gorm.DB
}

// NewTypeRepository returns a product type repository bound to the provided
// database.
func NewTypeRepository(db *gorm.DB) TypeRepository {
	return &typeRepository{db: db}
}

func (r *typeRepository) ListTypes(ctx context.Context) ([]models.ProductType, error) {
	var types []models.ProductType
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}

func (r *typeRepository) CreateType(ctx context.Context, productType *models.ProductType) error {
	return r.db.WithContext(ctx).Create(productType).Error
}

func (r *typeRepository) DeleteType(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.ProductType{}, id).Error
}

func (r *typeRepository) CountSubscriptionsForType(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("product_type_id = ?", id).
		Count(&count).Error
	return count, err
}

func (r *typeRepository) FindTypeByName(ctx context.Context, name string) (*models.ProductType, error) {
	var productType models.ProductType
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&productType).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &productType, nil
}
