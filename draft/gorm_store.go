package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/canvasflow/types"
)

// draftRow is the SQL representation of one tab's draft. The draft
// itself is stored as a JSON payload; the schema only needs the tab id
// for addressing, not the draft's inner structure.
type draftRow struct {
	TabID     string `gorm:"primaryKey;column:tab_id;size:64"`
	Payload   string `gorm:"column:payload;type:text"`
	UpdatedAt time.Time
}

// TableName sets the table name for GORM.
func (draftRow) TableName() string { return "tab_drafts" }

// GormStore persists drafts to a SQL database through GORM.
// Suitable when the deployment already runs a relational database and
// wants draft snapshots queryable alongside saved workflows.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a SQL draft store and migrates its table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.AutoMigrate(&draftRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate drafts table: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveDrafts replaces the stored map: rows for removed tabs are deleted,
// the rest upserted, all in one transaction. A failed transaction
// carries the ErrPersistFailed code.
func (s *GormStore) SaveDrafts(ctx context.Context, drafts map[string]types.TabDraft) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(drafts))
		rows := make([]draftRow, 0, len(drafts))
		for tabID, d := range drafts {
			payload, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("failed to marshal draft %s: %w", tabID, err)
			}
			ids = append(ids, tabID)
			rows = append(rows, draftRow{TabID: tabID, Payload: string(payload)})
		}

		del := tx.Where("1 = 1")
		if len(ids) > 0 {
			del = tx.Where("tab_id NOT IN ?", ids)
		}
		if err := del.Delete(&draftRow{}).Error; err != nil {
			return fmt.Errorf("failed to prune removed drafts: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tab_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to upsert drafts: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.NewError(types.ErrPersistFailed, "failed to save drafts").WithCause(err)
	}
	return nil
}

// LoadDrafts reads and normalizes every stored draft. Read failures
// carry the ErrStoreUnavailable code.
func (s *GormStore) LoadDrafts(ctx context.Context) (map[string]types.TabDraft, error) {
	var rows []draftRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to load drafts").WithCause(err)
	}

	drafts := make(map[string]types.TabDraft, len(rows))
	for _, row := range rows {
		var d types.TabDraft
		if err := json.Unmarshal([]byte(row.Payload), &d); err != nil {
			return nil, types.NewError(types.ErrStoreUnavailable, "failed to unmarshal draft "+row.TabID).WithCause(err)
		}
		d.Normalize()
		drafts[row.TabID] = d
	}
	return drafts, nil
}
