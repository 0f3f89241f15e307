package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RipinDensumite/thinwatcher/middleware"
	"github.com/RipinDensumite/thinwatcher/models"
	"github.com/RipinDensumite/thinwatcher/services"
	"github.com/RipinDensumite/thinwatcher/utils"
)

type AuthHandler struct {
	users     *services.UserService
	jwtSecret string
	jwtExpiry time.Duration
	logger    *utils.Logger
}

func NewAuthHandler(users *services.UserService, jwtSecret string, jwtExpiry time.Duration, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
		logger:    logger,
	}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Username and password are required",
			"details": err.Error(),
		})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid username or password. Please try again."})
			return
		}
		h.logger.Error("Login failed", "username", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	token, err := utils.GenerateToken(h.jwtSecret, user.ID, user.Username, user.Role, h.jwtExpiry)
	if err != nil {
		h.logger.Error("Failed to issue token", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	h.logger.Info("User logged in", "user_id", user.ID, "username", user.Username)
	c.JSON(http.StatusOK, models.LoginResponse{Token: token, User: *user})
}

// Profile handles GET /api/auth/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "User no longer exists"})
			return
		}
		h.logger.Error("Failed to load profile", "user_id", claims.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PUT /api/users/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Current password is incorrect"})
		case errors.Is(err, services.ErrUserExists):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Username or email already in use"})
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		default:
			h.logger.Error("Failed to update profile", "user_id", claims.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		}
		return
	}

	c.JSON(http.StatusOK, user)
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so this only
// acknowledges the request.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
