// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/gamerisk/models"
)

// RecordStore 记录存储接口
// FetchAll returns an internally consistent snapshot ordered by record
// id: no record is ever observed half-updated mid-read. Each
// implementation documents how it guarantees that. The write methods
// reject records that fail models.Validate, so every snapshot handed to
// the engine is already clean.
type RecordStore interface {
	FetchAll(ctx context.Context) ([]models.GamerRecord, error)
	FetchFiltered(ctx context.Context, pred func(*models.GamerRecord) bool) ([]models.GamerRecord, error)
	UpsertRecord(ctx context.Context, rec *models.GamerRecord) error
	UpsertBatch(ctx context.Context, recs []models.GamerRecord) error
	PopulationStats(ctx context.Context) (*models.PopulationStats, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
