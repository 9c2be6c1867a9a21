package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ebaygate/ebaygate/internal/models"
)

type createUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	IsAdmin  bool   `json:"is_admin"`
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	if _, exists := s.store.GetUserByEmail(req.Email); exists {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "email already registered",
			Code:  "DUPLICATE_EMAIL",
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "password hashing failed"})
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		IsAdmin:      req.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user", Message: err.Error()})
		return
	}
	if err := s.store.SetUser(user); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to save user", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleListUsers(c *gin.Context) {
	users := s.store.ListUsers()
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (s *Server) handleGetUser(c *gin.Context) {
	user, ok := s.store.GetUser(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	if !s.store.DeleteUser(c.Param("id")) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
