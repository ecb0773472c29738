// server/internal/api/handlers/user_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"site-procurement-api-server/config"
	"site-procurement-api-server/internal/auth"
	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserHandler struct {
	Store store.Store
	Cfg   config.Config
}

type LoginPayload struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and issues a JWT.
func (h *UserHandler) Login(c *gin.Context) {
	var payload LoginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Store.GetUserByEmail(c.Request.Context(), payload.Email)
	if err != nil || user.Status != "active" || !auth.CheckPasswordHash(payload.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	expiration, err := time.ParseDuration(h.Cfg.JWT.Expiration)
	if err != nil {
		expiration = 24 * time.Hour
	}
	token, err := auth.GenerateJWT([]byte(h.Cfg.JWT.Secret), expiration, user.UserID, user.Email, user.Name, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

type CreateUserPayload struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"` // requester, reviewer, procurement, storekeeper
}

func validRole(role string) bool {
	switch role {
	case models.RoleRequester, models.RoleReviewer, models.RoleProcurement, models.RoleStorekeeper:
		return true
	}
	return false
}

// CreateUser registers a new user. Superadmin only (enforced by the route
// group).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var payload CreateUserPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validRole(payload.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown role %q", payload.Role)})
		return
	}

	hashedPassword, err := auth.HashPassword(payload.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := &models.User{
		UserID:   fmt.Sprintf("USR-%s", strings.ToUpper(uuid.New().String()[:8])),
		Email:    payload.Email,
		Name:     payload.Name,
		Password: hashedPassword,
		Role:     payload.Role,
		Status:   "active",
	}

	if err := h.Store.InsertUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "A user with this email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, user)
}
