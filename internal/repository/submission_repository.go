package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tenant-onboarding-service/internal/models"
)

// SubmissionRepository stores the audit trail of create-tenant attempts
type SubmissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{
		db: db,
	}
}

// Migrate creates or updates the audit table
func (r *SubmissionRepository) Migrate() error {
	return r.db.AutoMigrate(&models.OnboardingSubmission{})
}

// Record inserts one attempt
func (r *SubmissionRepository) Record(ctx context.Context, submission *models.OnboardingSubmission) error {
	if err := r.db.WithContext(ctx).Create(submission).Error; err != nil {
		return fmt.Errorf("failed to record onboarding submission: %w", err)
	}
	return nil
}

// ListBySession returns the attempts of a session, oldest first
func (r *SubmissionRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.OnboardingSubmission, error) {
	var submissions []models.OnboardingSubmission
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("attempt ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list onboarding submissions: %w", err)
	}
	return submissions, nil
}

// CountByStatus returns the number of attempts per status
func (r *SubmissionRepository) CountByStatus(ctx context.Context) (map[models.SubmissionStatus]int64, error) {
	var rows []struct {
		Status models.SubmissionStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.OnboardingSubmission{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count onboarding submissions: %w", err)
	}

	counts := make(map[models.SubmissionStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
