package models

// FlatType is one unit layout offered within a project.
type FlatType struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProjectID uint   `gorm:"column:project_id;index;not null" json:"projectId"`
	Type      string `gorm:"size:100;not null" json:"type"`
	Size      int    `json:"size"`
}
