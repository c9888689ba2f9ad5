// report.go - Defines the Report model and its wire shape

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
)

// Valid reports whether s is one of the three report states.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Location is embedded in the reports table with a location_ column prefix.
// Coordinates keep GeoJSON order: [longitude, latitude].
type Location struct {
	County      string    `gorm:"not null" json:"county"`
	Ward        string    `json:"ward,omitempty"`
	Address     string    `json:"address,omitempty"`
	Coordinates []float64 `gorm:"serializer:json" json:"coordinates,omitempty"`
}

// Creator is the public projection of a User attached to every report.
type Creator struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (Creator) TableName() string { return "users" }

type Report struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"not null" json:"description"`
	Category    string    `gorm:"not null;index" json:"category"`
	Location    Location  `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Status      Status    `gorm:"not null;index" json:"status"`
	CreatedByID string    `gorm:"not null;index;type:varchar(36)" json:"-"`
	CreatedBy   Creator   `gorm:"foreignKey:CreatedByID;-:migration" json:"createdBy"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusNew
	}
	return nil
}

// LocationInput is the client-supplied location of a new report.
type LocationInput struct {
	County      string    `json:"county" binding:"required"`
	Ward        string    `json:"ward"`
	Address     string    `json:"address"`
	Coordinates []float64 `json:"coordinates" binding:"omitempty,len=2"`
}

// ReportInput is the body of POST /api/reports.
type ReportInput struct {
	Title       string        `json:"title" binding:"required"`
	Description string        `json:"description" binding:"required"`
	Category    string        `json:"category" binding:"required"`
	Location    LocationInput `json:"location"`
	ImageURL    string        `json:"imageUrl"`
}
