package models

import (
	"time"
)

type ProjectStatus string

const (
	StatusUpcoming  ProjectStatus = "upcoming"
	StatusOngoing   ProjectStatus = "ongoing"
	StatusCompleted ProjectStatus = "completed"
)

// AllStatuses lists every lifecycle stage in display order.
var AllStatuses = []ProjectStatus{StatusUpcoming, StatusOngoing, StatusCompleted}

func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusCompleted:
		return true
	}
	return false
}

// Project is a real-estate development listing.
//
// ImageURL holds the stored reference (normally a bare storage path such as
// "projects/1712345678901-ab12cd34ef56ab78.jpg"). DisplayImageURL is filled at
// render time and never persisted.
type Project struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Title         string        `gorm:"size:255;not null" json:"title"`
	Description   string        `gorm:"type:text" json:"description"`
	ImageURL      string        `gorm:"column:image_url;size:1024" json:"imageUrl"`
	Location      string        `gorm:"size:255" json:"location"`
	TotalFloors   int           `gorm:"column:total_floors" json:"totalFloors"`
	LandArea      float64       `gorm:"column:land_area" json:"landArea"`
	StartingPrice float64       `gorm:"column:starting_price;default:0" json:"startingPrice"`
	Status        ProjectStatus `gorm:"size:20;index;default:upcoming" json:"status"`
	Parking       bool          `gorm:"default:false" json:"parking"`
	Elevator      bool          `gorm:"default:false" json:"elevator"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	FlatTypes []FlatType `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"flatTypes"`

	DisplayImageURL string `gorm:"-" json:"displayImageUrl,omitempty"`
}
