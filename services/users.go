package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/RipinDensumite/thinwatcher/models"
	"github.com/RipinDensumite/thinwatcher/utils"
)

// UserService authenticates dashboard users against the users table.
type UserService struct {
	db     *gorm.DB
	logger *utils.Logger
}

func NewUserService(db *gorm.DB, logger *utils.Logger) *UserService {
	return &UserService{
		db:     db,
		logger: logger,
	}
}

// EnsureAdmin creates the bootstrap admin when the users table is empty.
// It reports whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if email == "" {
		email = username + "@localhost"
	}
	if _, err := s.create(ctx, username, email, password, models.RoleAdmin); err != nil {
		return false, err
	}

	s.logger.Info("Created bootstrap admin", "username", username)
	return true, nil
}

func (s *UserService) create(ctx context.Context, username, email, password, role string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: string(hash),
		Role:     role,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Authenticate checks username and password. Unknown users and wrong
// passwords both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// UpdateProfile changes the caller's own username, email or password after
// verifying the current password.
func (s *UserService) UpdateProfile(ctx context.Context, id uint, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return nil, ErrInvalidCredentials
	}

	updates := map[string]interface{}{}
	if req.Username != nil && strings.TrimSpace(*req.Username) != user.Username {
		updates["username"] = strings.TrimSpace(*req.Username)
	}
	if req.Email != nil && strings.TrimSpace(*req.Email) != user.Email {
		updates["email"] = strings.TrimSpace(*req.Email)
	}
	if req.NewPassword != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		updates["password"] = string(hash)
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.checkTaken(ctx, id, updates); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info("Updated profile", "user_id", id)
	return s.GetByID(ctx, id)
}

func (s *UserService) checkTaken(ctx context.Context, id uint, updates map[string]interface{}) error {
	for _, field := range []string{"username", "email"} {
		value, ok := updates[field]
		if !ok {
			continue
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where(field+" = ? AND id <> ?", value, id).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check %s: %w", field, err)
		}
		if count > 0 {
			return ErrUserExists
		}
	}
	return nil
}
