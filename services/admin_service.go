package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"estate-backend/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrAdminCredentialsRequired = errors.New("email and password are required")

type AdminService struct {
	DB *gorm.DB
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{DB: db}
}

// Upsert creates an active admin, or reactivates an existing one with a new
// password. The returned bool is true when a new row was inserted.
func (s *AdminService) Upsert(ctx context.Context, email, password string) (*models.Admin, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, false, ErrAdminCredentialsRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	var admin models.Admin
	err = s.DB.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		admin = models.Admin{Email: email, Password: string(hash), IsActive: true}
		if err := s.DB.WithContext(ctx).Create(&admin).Error; err != nil {
			return nil, false, fmt.Errorf("create admin: %w", err)
		}
		return &admin, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("find admin: %w", err)
	}

	if err := s.DB.WithContext(ctx).Model(&admin).Updates(map[string]interface{}{
		"password":  string(hash),
		"is_active": true,
	}).Error; err != nil {
		return nil, false, fmt.Errorf("reactivate admin: %w", err)
	}
	return &admin, false, nil
}

// SeedIfEmpty creates the first admin when the table is empty. It reports
// whether an admin was created.
func (s *AdminService) SeedIfEmpty(ctx context.Context, email, password string) (bool, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return false, nil
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, created, err := s.Upsert(ctx, email, password)
	return created, err
}
