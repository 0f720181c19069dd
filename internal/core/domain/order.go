package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID        string
	UserID    string
	Status    OrderStatus
	Total     decimal.Decimal
	Items     []OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	VariantID string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Ref returns the stock-bearing entity this line consumed from.
func (i OrderItem) Ref() StockRef {
	return StockRef{ProductID: i.ProductID, VariantID: i.VariantID}
}
