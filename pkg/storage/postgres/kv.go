package postgres

import (
	"context"
	"errors"

	"tradedash/internal/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVStore persists store documents in the kv_record table.
type KVStore struct {
	client *PostgresClient
}

var _ store.Backend = (*KVStore)(nil)

func NewKVStore(client *PostgresClient) *KVStore {
	return &KVStore{client: client}
}

func (s *KVStore) Load(ctx context.Context, key string) ([]byte, error) {
	var rec KVRecord
	err := s.client.DB.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

// Save upserts the document under key.
func (s *KVStore) Save(ctx context.Context, key string, value []byte) error {
	rec := KVRecord{Key: key, Value: value}
	return s.client.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
}
