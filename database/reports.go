// reports.go - Report store accessor

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cima-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportStore performs CRUD over the reports table. Every report it
// returns has CreatedBy resolved to the creator's public fields.
type ReportStore struct {
	db *gorm.DB
}

func NewReportStore(db *gorm.DB) *ReportStore {
	return &ReportStore{db: db}
}

func (s *ReportStore) withCreator(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("CreatedBy", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "name", "email")
	})
}

// List returns every report. No ordering is guaranteed.
func (s *ReportStore) List(ctx context.Context) ([]models.Report, error) {
	reports := []models.Report{}
	if err := s.withCreator(ctx).Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// Get returns a single report or ErrNotFound.
func (s *ReportStore) Get(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := s.withCreator(ctx).Where("id = ?", id).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return &report, nil
}

// Create validates and persists a new report owned by creatorID, then
// re-reads it so the caller receives the stored document with its
// creator resolved.
func (s *ReportStore) Create(ctx context.Context, in models.ReportInput, creatorID string) (*models.Report, error) {
	if err := validateReport(in); err != nil {
		return nil, err
	}

	report := models.Report{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Location: models.Location{
			County:      strings.TrimSpace(in.Location.County),
			Ward:        strings.TrimSpace(in.Location.Ward),
			Address:     strings.TrimSpace(in.Location.Address),
			Coordinates: in.Location.Coordinates,
		},
		ImageURL:    in.ImageURL,
		Status:      models.StatusNew,
		CreatedByID: creatorID,
	}

	// The creator check and the insert share one transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", creatorID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrCreatorNotFound
		}
		return tx.Omit(clause.Associations).Create(&report).Error // CreatedBy is a read-only projection
	})
	if err != nil {
		if errors.Is(err, ErrCreatorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create report: %w", err)
	}

	return s.Get(ctx, report.ID)
}

// UpdateStatus moves a report to one of the three states.
func (s *ReportStore) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.Report, error) {
	if !status.Valid() {
		return nil, &ValidationError{Fields: []string{"status"}, Reason: "status must be one of New, In Progress, Resolved"}
	}
	res := s.db.WithContext(ctx).Model(&models.Report{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, fmt.Errorf("update report %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes a report or returns ErrNotFound.
func (s *ReportStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Report{})
	if res.Error != nil {
		return fmt.Errorf("delete report %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored reports.
func (s *ReportStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Report{}).Count(&n).Error
	return n, err
}

func validateReport(in models.ReportInput) error {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"title", in.Title},
		{"description", in.Description},
		{"category", in.Category},
		{"location.county", in.Location.County},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}

	if c := in.Location.Coordinates; len(c) > 0 {
		if len(c) != 2 || c[0] < -180 || c[0] > 180 || c[1] < -90 || c[1] > 90 {
			return &ValidationError{
				Fields: []string{"location.coordinates"},
				Reason: "location.coordinates must be [longitude, latitude]",
			}
		}
	}
	return nil
}
