package persist

import (
	"context"
	stderrors "errors"

	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the write surface the subscriber persists events through.
type Store interface {
	InsertOrder(ctx context.Context, order schema.OrderRequest) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status schema.OrderStatus, reason string) error
	InsertFill(ctx context.Context, fill schema.Fill) error
	UpsertPosition(ctx context.Context, pos schema.Position) error
	InsertSnapshot(ctx context.Context, snap schema.PortfolioSnapshot) error
}

var _ Store = (*Repository)(nil)

// Repository stores orders, fills, positions and snapshots with gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps db. Call Migrate before first use.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the tables.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&OrderRecord{},
		&FillRecord{},
		&PositionRecord{},
		&SnapshotRecord{},
	); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}

func (r *Repository) InsertOrder(ctx context.Context, order schema.OrderRequest) error {
	rec := newOrderRecord(order)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return errors.Wrapf(err, "insert order %s", order.ID)
	}
	return nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status schema.OrderStatus, reason string) error {
	updates := map[string]any{"status": status.String()}
	if reason != "" {
		updates["reason"] = reason
	}
	res := r.db.WithContext(ctx).Model(&OrderRecord{}).Where("id = ?", id.String()).Updates(updates)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update order %s", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(exception.ErrUnknownOrder, "id: %s", id)
	}
	return nil
}

func (r *Repository) InsertFill(ctx context.Context, fill schema.Fill) error {
	rec := newFillRecord(fill)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return errors.Wrapf(err, "insert fill of order %s", fill.OrderID)
	}
	return nil
}

func (r *Repository) UpsertPosition(ctx context.Context, pos schema.Position) error {
	rec := newPositionRecord(pos)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "avg_entry_price", "realized_pnl", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return errors.Wrapf(err, "upsert position %s", pos.Symbol)
	}
	return nil
}

func (r *Repository) InsertSnapshot(ctx context.Context, snap schema.PortfolioSnapshot) error {
	rec := newSnapshotRecord(snap)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return errors.Wrap(err, "insert snapshot")
	}
	return nil
}

// Orders returns every order, newest first.
func (r *Repository) Orders(ctx context.Context) ([]OrderRecord, error) {
	var out []OrderRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	return out, nil
}

// Order returns one order by id.
func (r *Repository) Order(ctx context.Context, id uuid.UUID) (OrderRecord, error) {
	var out OrderRecord
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).Take(&out).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return OrderRecord{}, errors.Wrapf(exception.ErrUnknownOrder, "id: %s", id)
	}
	if err != nil {
		return OrderRecord{}, errors.Wrapf(err, "query order %s", id)
	}
	return out, nil
}

// FillsForOrder returns the fills of one order in execution order.
func (r *Repository) FillsForOrder(ctx context.Context, id uuid.UUID) ([]FillRecord, error) {
	var out []FillRecord
	if err := r.db.WithContext(ctx).Where("order_id = ?", id.String()).Order("filled_at, id").Find(&out).Error; err != nil {
		return nil, errors.Wrapf(err, "query fills of %s", id)
	}
	return out, nil
}

// Positions returns every stored position.
func (r *Repository) Positions(ctx context.Context) ([]PositionRecord, error) {
	var out []PositionRecord
	if err := r.db.WithContext(ctx).Order("symbol").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "query positions")
	}
	return out, nil
}

// Snapshots returns the latest limit snapshots, newest first.
func (r *Repository) Snapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []SnapshotRecord
	if err := r.db.WithContext(ctx).Order("snapshot_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "query snapshots")
	}
	return out, nil
}
