package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
)

// AccountService registers and authenticates users.
type AccountService struct {
	db      *gorm.DB
	baskets *BasketService
}

// NewAccountService constructs AccountService.
func NewAccountService(db *gorm.DB, baskets *BasketService) *AccountService {
	return &AccountService{db: db, baskets: baskets}
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	IsStaff     bool
}

// ProfileUpdate holds the profile fields to change; nil fields are kept.
type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the user and its basket in one transaction.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, *models.Basket, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Email:        normalizeEmail(in.Email),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		PasswordHash: string(hash),
		IsActive:     true,
		IsStaff:      in.IsStaff,
	}

	var basket *models.Basket
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: email %q is already registered", ErrDuplicateKey, user.Email)
		}

		if err := tx.Create(user).Error; err != nil {
			return err
		}

		var err error
		basket, err = s.baskets.CreateForUser(tx, user.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return user, basket, nil
}

// Authenticate returns the active user matching the credentials.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", normalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get loads a user by id.
func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes the personal fields of a user.
func (s *AccountService) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.FirstName != nil {
		user.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		user.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.PhoneNumber != nil {
		user.PhoneNumber = strings.TrimSpace(*upd.PhoneNumber)
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AccountService) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Update("password_hash", string(hash)).Error
}
