// user.go - Defines the User model for the database

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string // Role controls access to admin endpoints

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Preferences are stored inline on the user row with a pref_ column prefix.
type Preferences struct {
	EmailNotifications bool `json:"emailNotifications"` // Receive new-report emails
	ReportUpdates      bool `json:"reportUpdates"`      // Receive status updates on own reports
}

// DefaultPreferences are applied at registration.
func DefaultPreferences() Preferences {
	return Preferences{EmailNotifications: true, ReportUpdates: true}
}

type User struct { // User represents an account in the database
	ID                string      `gorm:"primaryKey;type:varchar(36)" json:"_id"`
	Name              string      `gorm:"not null" json:"name"`
	Email             string      `gorm:"uniqueIndex;not null" json:"email"` // Case-sensitive, unique
	Password          string      `gorm:"not null" json:"-"`                 // bcrypt hash, never serialized
	Role              Role        `gorm:"not null;default:member" json:"role"`
	IsVerified        bool        `gorm:"not null" json:"isVerified"`
	VerificationToken *string     `json:"-"` // Cleared once the email is verified
	Preferences       Preferences `gorm:"embedded;embeddedPrefix:pref_" json:"preferences"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleMember
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
