package postgres

import (
	"context"
	"slices"
	"strings"
	"time"

	"tradedash/pkg/marketdata"

	"gorm.io/gorm/clause"
)

// InsertQuotes stores records, skipping any (symbol, fetched_at) already
// present. It returns the number of rows written.
func (p *PostgresClient) InsertQuotes(ctx context.Context, records []QuoteRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "fetched_at"},
		},
		DoNothing: true,
	}).Create(&records)

	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

func (p *PostgresClient) GetLatestQuote(ctx context.Context, symbol string) (*QuoteRecord, error) {
	var quote QuoteRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ?", strings.ToUpper(symbol)).
		Order("fetched_at DESC").
		First(&quote).Error

	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// DeleteQuotesBefore purges history older than before and returns the number of rows removed.
func (p *PostgresClient) DeleteQuotesBefore(ctx context.Context, before time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("fetched_at < ?", before).
		Delete(&QuoteRecord{})
	return tx.RowsAffected, tx.Error
}

// ToQuoteRecords converts one quotes snapshot into rows sorted by symbol.
func ToQuoteRecords(quotes map[string]marketdata.Quote, fetchedAt time.Time) []QuoteRecord {
	records := make([]QuoteRecord, 0, len(quotes))
	for symbol, q := range quotes {
		records = append(records, QuoteRecord{
			Symbol:        symbol,
			FetchedAt:     fetchedAt.UTC(),
			Price:         q.Price,
			Change:        q.Change,
			ChangePercent: q.ChangePercent,
			Volume:        q.Volume,
		})
	}
	slices.SortFunc(records, func(a, b QuoteRecord) int {
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return records
}
