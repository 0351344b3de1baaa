package services

import (
	"context"
	"encoding/json"
	"fmt"

	"estate-backend/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ActivityService struct {
	DB *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{DB: db}
}

// Record appends one activity row with a JSON snapshot of the project.
func (s *ActivityService) Record(ctx context.Context, action string, actor string, project *models.Project) error {
	snapshot, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	entry := models.ProjectActivity{
		ProjectID: project.ID,
		Action:    action,
		Actor:     actor,
		Snapshot:  datatypes.JSON(snapshot),
	}
	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("record %s activity: %w", action, err)
	}
	return nil
}

// ListByProject returns the activity of one project, newest first.
func (s *ActivityService) ListByProject(ctx context.Context, projectID uint) ([]models.ProjectActivity, error) {
	entries := []models.ProjectActivity{}
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}
