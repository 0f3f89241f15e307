package models

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is a dashboard account
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"`
	Role      string    `json:"role" gorm:"default:user"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Request/Response DTOs
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type UpdateProfileRequest struct {
	Username        *string `json:"username" binding:"omitempty,min=3"`
	Email           *string `json:"email" binding:"omitempty,email"`
	CurrentPassword string  `json:"currentPassword" binding:"required"`
	NewPassword     *string `json:"newPassword" binding:"omitempty,min=6"`
}
