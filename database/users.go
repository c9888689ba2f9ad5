// users.go - User store accessor

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cima-backend/models"

	"gorm.io/gorm"
)

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a new account. Duplicate emails yield ErrDuplicateEmail.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	var missing []string
	if strings.TrimSpace(user.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(user.Email) == "" {
		missing = append(missing, "email")
	}
	if user.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "email = ?", email)
}

func (s *UserStore) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// List returns every account.
func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Order("created_at").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// MarkVerified flips isVerified and clears the stored verification token.
func (s *UserStore) MarkVerified(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]any{
		"is_verified":        true,
		"verification_token": nil,
	})
}

// ProfileUpdate lists the account fields to change. Empty values are left alone.
type ProfileUpdate struct {
	Name              string
	Email             string
	VerificationToken string // Required with Email: a new address starts unverified
}

// UpdateProfile applies the changes. A new email drops the verified flag
// and stores the token that will confirm the new address.
func (s *UserStore) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (*models.User, error) {
	fields := map[string]any{}
	if name := strings.TrimSpace(p.Name); name != "" {
		fields["name"] = name
	}
	if email := strings.TrimSpace(p.Email); email != "" {
		if p.VerificationToken == "" {
			return nil, &ValidationError{Fields: []string{"verificationToken"}, Reason: "a new email needs a verification token"}
		}
		fields["email"] = email
		fields["is_verified"] = false
		fields["verification_token"] = p.VerificationToken
	}
	if len(fields) > 0 {
		if err := s.update(ctx, id, fields); err != nil {
			return nil, err
		}
	}
	return s.FindByID(ctx, id)
}

func (s *UserStore) UpdatePassword(ctx context.Context, id, hash string) error {
	return s.update(ctx, id, map[string]any{"password": hash})
}

func (s *UserStore) UpdatePreferences(ctx context.Context, id string, prefs models.Preferences) (*models.User, error) {
	err := s.update(ctx, id, map[string]any{
		"pref_email_notifications": prefs.EmailNotifications,
		"pref_report_updates":      prefs.ReportUpdates,
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

// Promote grants the admin role. Promotion is one-way.
func (s *UserStore) Promote(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]any{"role": models.RoleAdmin})
}

// NotificationRecipients returns the addresses of verified users that
// opted in to new-report emails.
func (s *UserStore) NotificationRecipients(ctx context.Context) ([]string, error) {
	var emails []string
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("is_verified = ? AND pref_email_notifications = ?", true, true).
		Pluck("email", &emails).Error
	if err != nil {
		return nil, fmt.Errorf("notification recipients: %w", err)
	}
	return emails, nil
}

func (s *UserStore) update(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
