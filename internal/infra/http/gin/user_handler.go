package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"dmchat/internal/app/dto"
	"dmchat/internal/app/services/users"
	domainuser "dmchat/internal/domain/user"
)

type UserHTTP interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	List(c *gin.Context)
	Profile(c *gin.Context)
	UpdateProfile(c *gin.Context)
	ChangePassword(c *gin.Context)
	Delete(c *gin.Context)
}

type UserHandler struct {
	Service *users.Service
	Logger  *slog.Logger
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Avatar   string `json:"avatar"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	Name   string `json:"name" binding:"required"`
	Avatar string `json:"avatar"`
}

type changePasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h UserHandler) Register(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"msg": msgTryAgain})
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "")
		return
	}
	result, err := h.Service.Register(c.Request.Context(), users.RegisterParams{
		Email:    req.Email,
		Name:     req.Name,
		Avatar:   req.Avatar,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.Logger, err, "register")
		return
	}
	c.JSON(http.StatusCreated, dto.NewAuthResponse(result.User, result.Token))
}

func (h UserHandler) Login(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"msg": msgTryAgain})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "")
		return
	}
	result, err := h.Service.Login(c.Request.Context(), users.LoginParams{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.Logger, err, "login")
		return
	}
	c.JSON(http.StatusOK, dto.NewAuthResponse(result.User, result.Token))
}

func (h UserHandler) List(c *gin.Context) {
	list, err := h.Service.List(c.Request.Context())
	if err != nil {
		respondError(c, h.Logger, err, "list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": dto.MapUserProfiles(list)})
}

func (h UserHandler) Profile(c *gin.Context) {
	id, err := domainuser.ParseID(c.Param("userId"))
	if err != nil {
		respondError(c, h.Logger, err, "load profile")
		return
	}
	u, err := h.Service.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.Logger, err, "load profile", "user_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": dto.MapUserProfile(u)})
}

func (h UserHandler) UpdateProfile(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	target, err := domainuser.ParseID(c.Param("userId"))
	if err != nil {
		respondError(c, h.Logger, err, "update profile")
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "")
		return
	}
	u, err := h.Service.UpdateProfile(c.Request.Context(), identity.UserID, target, users.ProfileParams{
		Name:   req.Name,
		Avatar: req.Avatar,
	})
	if err != nil {
		respondError(c, h.Logger, err, "update profile", "user_id", target)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": dto.MapUserProfile(u)})
}

func (h UserHandler) ChangePassword(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	target, err := domainuser.ParseID(c.Param("userId"))
	if err != nil {
		respondError(c, h.Logger, err, "change password")
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "")
		return
	}
	u, err := h.Service.ChangePassword(c.Request.Context(), identity.UserID, target, req.Password)
	if err != nil {
		respondError(c, h.Logger, err, "change password", "user_id", target)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": dto.MapUserProfile(u)})
}

// Delete removes the caller's own account. Attachments are purged afterwards.
func (h UserHandler) Delete(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	if err := h.Service.Delete(c.Request.Context(), identity.UserID); err != nil {
		respondError(c, h.Logger, err, "delete account", "user_id", identity.UserID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleting account success"})
}

var _ UserHTTP = (*UserHandler)(nil)
