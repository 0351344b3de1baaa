package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ActivityCreated = "created"
	ActivityUpdated = "updated"
	ActivityDeleted = "deleted"
)

// ProjectActivity records one admin write against a project. ProjectID is kept
// after the project itself is deleted, so there is no foreign key.
type ProjectActivity struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ProjectID uint           `gorm:"column:project_id;index" json:"projectId"`
	Action    string         `gorm:"size:32;index" json:"action"`
	Actor     string         `gorm:"size:150" json:"actor"`
	Snapshot  datatypes.JSON `gorm:"column:snapshot" json:"snapshot,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}
