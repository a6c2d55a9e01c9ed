package persist

import (
	"time"

	"tradesim/internal/schema"

	"github.com/shopspring/decimal"
)

// OrderRecord is a persisted order request and its latest status.
type OrderRecord struct {
	ID         string              `gorm:"primaryKey;size:36" json:"id"`
	Symbol     string              `gorm:"index;size:32" json:"symbol"`
	Side       string              `gorm:"size:8" json:"side"`
	Quantity   int64               `json:"quantity"`
	OrderType  string              `gorm:"size:16" json:"order_type"`
	LimitPrice decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"limit_price"`
	StrategyID string              `gorm:"index;size:64" json:"strategy_id"`
	Status     string              `gorm:"index;size:20" json:"status"`
	Reason     string              `gorm:"size:255" json:"reason"`
	CreatedAt  time.Time           `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (OrderRecord) TableName() string { return "orders" }

// FillRecord is a persisted simulated fill.
type FillRecord struct {
	ID       int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID  string          `gorm:"index;size:36" json:"order_id"`
	Symbol   string          `gorm:"index;size:32" json:"symbol"`
	Side     string          `gorm:"size:8" json:"side"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`
	FilledAt time.Time       `gorm:"index" json:"filled_at"`
}

func (FillRecord) TableName() string { return "fills" }

// PositionRecord is the latest state of one symbol's position.
type PositionRecord struct {
	Symbol        string          `gorm:"primaryKey;size:32" json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AvgEntryPrice decimal.Decimal `gorm:"type:decimal(20,8)" json:"avg_entry_price"`
	RealizedPnL   decimal.Decimal `gorm:"type:decimal(20,8)" json:"realized_pnl"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (PositionRecord) TableName() string { return "positions" }

// SnapshotRecord is a periodic portfolio valuation.
type SnapshotRecord struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Cash               decimal.Decimal `gorm:"type:decimal(20,8)" json:"cash"`
	TotalEquity        decimal.Decimal `gorm:"type:decimal(20,8)" json:"total_equity"`
	TotalUnrealizedPnL decimal.Decimal `gorm:"type:decimal(20,8)" json:"total_unrealized_pnl"`
	TotalRealizedPnL   decimal.Decimal `gorm:"type:decimal(20,8)" json:"total_realized_pnl"`
	SnapshotAt         time.Time       `gorm:"index" json:"snapshot_at"`
}

func (SnapshotRecord) TableName() string { return "portfolio_snapshots" }

func newOrderRecord(o schema.OrderRequest) OrderRecord {
	rec := OrderRecord{
		ID:         o.ID.String(),
		Symbol:     o.Symbol,
		Side:       o.Side.String(),
		Quantity:   o.Quantity,
		OrderType:  o.Type.String(),
		StrategyID: o.StrategyID,
		Status:     schema.OrderStatusPending.String(),
		CreatedAt:  o.Timestamp,
	}
	if o.LimitPrice != nil {
		rec.LimitPrice = decimal.NewNullDecimal(*o.LimitPrice)
	}
	return rec
}

func newFillRecord(f schema.Fill) FillRecord {
	return FillRecord{
		OrderID:  f.OrderID.String(),
		Symbol:   f.Symbol,
		Side:     f.Side.String(),
		Quantity: f.Quantity,
		Price:    f.Price,
		FilledAt: f.Timestamp,
	}
}

func newPositionRecord(p schema.Position) PositionRecord {
	return PositionRecord{
		Symbol:        p.Symbol,
		Quantity:      p.Quantity,
		AvgEntryPrice: p.AvgEntryPrice,
		RealizedPnL:   p.RealizedPnL,
		UpdatedAt:     time.Now().UTC(),
	}
}

func newSnapshotRecord(s schema.PortfolioSnapshot) SnapshotRecord {
	return SnapshotRecord{
		Cash:               s.Cash,
		TotalEquity:        s.TotalEquity,
		TotalUnrealizedPnL: s.TotalUnrealizedPnL,
		TotalRealizedPnL:   s.TotalRealizedPnL,
		SnapshotAt:         s.Timestamp,
	}
}
