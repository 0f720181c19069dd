package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StatusAvailable  StockStatus = "AVAILABLE"
	StatusLowStock   StockStatus = "LOW_STOCK"
	StatusOutOfStock StockStatus = "OUT_OF_STOCK"
)

// lowStockThreshold is the exclusive upper bound for LOW_STOCK.
const lowStockThreshold = 5

// StatusForStock derives the stock status from a quantity. Status is never
// stored independently of stock; every stock write recomputes it here.
func StatusForStock(stock int) StockStatus {
	switch {
	case stock <= 0:
		return StatusOutOfStock
	case stock < lowStockThreshold:
		return StatusLowStock
	default:
		return StatusAvailable
	}
}

type Product struct {
	ID          string
	CategoryID  string
	SKU         string
	Name        string
	Description string
	HasVariants bool

	// BasePrice, Stock, Status and Version are only meaningful when
	// HasVariants is false; a variant-tracked product delegates quantity
	// and pricing to its Variants.
	BasePrice decimal.NullDecimal
	Stock     *int
	Status    StockStatus
	Version   int64

	IsActive  bool
	Variants  []Variant
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Variant struct {
	ID        string
	ProductID string
	SKU       string
	Name      string
	Price     decimal.Decimal
	Stock     int
	Status    StockStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockRef addresses exactly one stock-bearing entity: the product itself
// when VariantID is empty, otherwise one of its variants.
type StockRef struct {
	ProductID string
	VariantID string
}

func (r StockRef) IsVariant() bool { return r.VariantID != "" }

// StockRow is the snapshot the ledger reads before a conditional update.
type StockRow struct {
	Stock   int
	Version int64
}

// StockState is the durable outcome of a successful stock write.
type StockState struct {
	Stock   int
	Status  StockStatus
	Version int64
}

// ProductFilter is the full parameter set of a list query. Its JSON
// serialization is part of the list cache key, so every field that changes
// the result set must live here.
type ProductFilter struct {
	CategoryID string          `json:"category_id,omitempty"`
	Status     StockStatus     `json:"status,omitempty"`
	MinPrice   decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice   decimal.Decimal `json:"max_price,omitempty"`
	Search     string          `json:"search,omitempty"`
	SortBy     string          `json:"sort_by,omitempty"`
	SortOrder  string          `json:"sort_order,omitempty"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
}

func (f ProductFilter) Normalized() ProductFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	return f
}

type ProductPage struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}
