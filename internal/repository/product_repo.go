package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"quickcart/internal/model"
)

// Sentinel errors surfaced by guarded updates.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyTerminal   = errors.New("record already in terminal state")
	ErrStatusChanged     = errors.New("status changed concurrently")
)

// ProductRepository is the stock ledger. All counter mutations are
// guarded single-statement updates so they stay correct under
// concurrent transactions.
type ProductRepository interface {
	// WithTx returns a repository bound to the given transaction
	WithTx(tx *gorm.DB) ProductRepository

	// Create product
	Create(ctx context.Context, product *model.Product) error

	// Get product by ID
	GetByID(ctx context.Context, id uint64) (*model.Product, error)

	// Reserve increments reserved_quantity if enough stock is available
	Reserve(ctx context.Context, id uint64, quantity int) error

	// ReleaseReserved decrements reserved_quantity
	ReleaseReserved(ctx context.Context, id uint64, quantity int) error

	// DeductStock decrements stock_quantity (physical deduction)
	DeductStock(ctx context.Context, id uint64, quantity int) error

	// RestoreStock increments stock_quantity
	RestoreStock(ctx context.Context, id uint64, quantity int) error

	// AppendLog writes an inventory movement record
	AppendLog(ctx context.Context, entry *model.InventoryLog) error
}

// productRepository product repository implementation
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a product repository
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *productRepository) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepository{db: tx}
}

// Create creates a product
func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// GetByID gets a product by ID
func (r *productRepository) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// Reserve increments reserved_quantity, guarded by availability so two
// concurrent checkouts cannot both claim the last units.
func (r *productRepository) Reserve(ctx context.Context, id uint64, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND is_available = ? AND stock_quantity - reserved_quantity >= ?", id, true, quantity).
		Update("reserved_quantity", gorm.Expr("reserved_quantity + ?", quantity))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// ReleaseReserved decrements reserved_quantity
func (r *productRepository) ReleaseReserved(ctx context.Context, id uint64, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND reserved_quantity >= ?", id, quantity).
		Update("reserved_quantity", gorm.Expr("reserved_quantity - ?", quantity)).Error
}

// DeductStock decrements stock_quantity (atomic, guarded)
func (r *productRepository) DeductStock(ctx context.Context, id uint64, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock_quantity >= ?", id, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// RestoreStock increments stock_quantity
func (r *productRepository) RestoreStock(ctx context.Context, id uint64, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", quantity)).Error
}

// AppendLog writes an inventory movement record
func (r *productRepository) AppendLog(ctx context.Context, entry *model.InventoryLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
