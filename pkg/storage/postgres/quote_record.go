package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteRecord is one polled quote snapshot.
type QuoteRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol    string    `gorm:"type:text;not null;index:idx_quote_symbol;index:idx_quote_symbol_fetched_at,unique"`
	FetchedAt time.Time `gorm:"not null;index:idx_quote_symbol_fetched_at,unique;index:idx_quote_fetched_at"`

	Price         decimal.Decimal `gorm:"type:numeric;not null"`
	Change        decimal.Decimal `gorm:"type:numeric;not null"`
	ChangePercent decimal.Decimal `gorm:"type:numeric;not null"`
	Volume        int64           `gorm:"not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (QuoteRecord) TableName() string {
	return "quote_record"
}

// KVRecord holds one store document.
type KVRecord struct {
	Key       string    `gorm:"primaryKey;type:text"`
	Value     []byte    `gorm:"type:bytea;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (KVRecord) TableName() string {
	return "kv_record"
}
