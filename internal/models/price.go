package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CachedPrice is one historical fair-market-value quote kept in the local
// cache so repeated runs price the same day identically without refetch.
type CachedPrice struct {
	Asset     string          `json:"asset" gorm:"primaryKey;column:asset;type:varchar(20)"`
	Date      string          `json:"date" gorm:"primaryKey;column:date;type:varchar(10)"` // YYYY-MM-DD
	Price     decimal.Decimal `json:"price" gorm:"column:price;type:decimal(30,18);not null"`
	Source    string          `json:"source" gorm:"column:source;type:varchar(50)"`
	CreatedAt time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for the CachedPrice model.
func (CachedPrice) TableName() string {
	return "cached_prices"
}
