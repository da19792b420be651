package catalog

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository wires catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, p *Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByID loads a single product. Returns nil when absent.
func (r *Repository) FindByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// FindByIDs loads the products matching the given IDs. Absent IDs are
// simply missing from the result; the caller decides what that means.
func (r *Repository) FindByIDs(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", dedupeSorted(ids)).
		Find(&products).Error
	return products, err
}

// LockByIDsTx loads product rows under FOR UPDATE in ascending ID order.
// The deterministic lock order keeps concurrent checkouts from
// deadlocking each other.
func (r *Repository) LockByIDsTx(tx *gorm.DB, ids []string) ([]Product, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	query := tx.Where("id IN ?", dedupeSorted(ids)).Order("id ASC")
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var products []Product
	err := query.Find(&products).Error
	return products, err
}

// DecrementStockTx subtracts qty guarded by the current stock level and
// reports whether the decrement applied. A false return means another
// transaction drained the stock first.
func (r *Repository) DecrementStockTx(tx *gorm.DB, id string, qty int) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	if qty <= 0 {
		return true, nil
	}
	result := tx.Model(&Product{}).
		Where("id = ?", id).
		Where("stock >= ?", qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
