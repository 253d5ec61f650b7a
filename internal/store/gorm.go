package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scio-practice/session-service/internal/models"
)

// GormRecords backs RecordStore with Postgres.
type GormRecords struct {
	db *gorm.DB
}

func NewGormRecords(db *gorm.DB) (*GormRecords, error) {
	if err := db.AutoMigrate(&models.AssignmentTimeRecord{}, &models.ResultSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate record tables: %w", err)
	}
	return &GormRecords{db: db}, nil
}

func (r *GormRecords) SaveTimeRecord(ctx context.Context, rec *models.AssignmentTimeRecord) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "user_id"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save time record: %w", err)
	}
	return nil
}

func (r *GormRecords) LoadTimeRecord(ctx context.Context, assignmentID, userID string) (*models.AssignmentTimeRecord, error) {
	var rec models.AssignmentTimeRecord
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND user_id = ?", assignmentID, userID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load time record: %w", err)
	}
	return &rec, nil
}

func (r *GormRecords) SaveSnapshot(ctx context.Context, snap *models.ResultSnapshot) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(snap).Error
	if err != nil {
		return fmt.Errorf("failed to save result snapshot: %w", err)
	}
	return nil
}

func (r *GormRecords) LoadSnapshot(ctx context.Context, assignmentID, userID string) (*models.ResultSnapshot, error) {
	var snap models.ResultSnapshot
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND user_id = ?", assignmentID, userID).
		Order("submitted_at DESC").
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load result snapshot: %w", err)
	}
	return &snap, nil
}
