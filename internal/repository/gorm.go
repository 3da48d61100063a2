package repository

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/psds-microservice/issue-tracker/internal/database"
	"github.com/psds-microservice/issue-tracker/internal/model"
)

// GormRepository stores issues in PostgreSQL through gorm.
type GormRepository struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewGormRepository(db *gorm.DB, log *slog.Logger) *GormRepository {
	if log == nil {
		log = slog.Default()
	}
	return &GormRepository{db: db, log: log}
}

func (r *GormRepository) Find(ctx context.Context, c Criteria) ([]model.Issue, error) {
	items := make([]model.Issue, 0)
	tx := r.db.WithContext(ctx).Model(&model.Issue{})
	for _, field := range sortedKeys(c) {
		if !isFilterable(field) {
			return nil, fmt.Errorf("find issues: unknown field %q", field)
		}
		if field == model.FieldOpen {
			open, ok := parseOpen(c[field])
			if !ok {
				return items, nil
			}
			tx = tx.Where("open = ?", open)
			continue
		}
		tx = tx.Where(column(field)+" = ?", c[field])
	}
	if err := tx.Order("created_on ASC, id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	return items, nil
}

func (r *GormRepository) Insert(ctx context.Context, issue *model.Issue) error {
	if issue.ID == "" {
		issue.ID = NewID()
	}
	if err := r.db.WithContext(ctx).Create(issue).Error; err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (r *GormRepository) UpdateByID(ctx context.Context, id string, ch Changes) (int64, error) {
	updates := make(map[string]interface{}, len(ch))
	for field, v := range ch {
		updates[column(field)] = v
	}
	res := r.db.WithContext(ctx).Model(&model.Issue{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("update issue %s: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Issue{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete issue %s: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormRepository) Migrate(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return database.Migrate(ctx, sqlDB, r.log)
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
