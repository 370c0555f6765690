package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicecoach/internal/accounts"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Accounts *accounts.Service
}

// RegisterAccount creates a scheduling record and triggers the welcome call.
func (h Handlers) RegisterAccount(c *gin.Context) {
	var req accounts.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Accounts.Register(c.Request.Context(), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h Handlers) ListAccounts(c *gin.Context) {
	list, err := h.Accounts.List(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": list})
}

func (h Handlers) ActivateAccount(c *gin.Context) {
	a, err := h.Accounts.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) DeactivateAccount(c *gin.Context) {
	a, err := h.Accounts.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// CallAccountNow places an immediate call, bypassing the schedule. The
// account must still be active.
func (h Handlers) CallAccountNow(c *gin.Context) {
	if err := h.Accounts.CallNow(c.Request.Context(), c.Param("id")); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "call initiated"})
}

func (h Handlers) DeleteAccount(c *gin.Context) {
	if err := h.Accounts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// abortWithServiceError maps service sentinel errors to HTTP statuses. The
// error text is safe to echo: services wrap sentinels with field detail, not
// internals.
func abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "account not found"})
	case errors.Is(err, accounts.ErrDuplicatePhone):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "phone number already registered"})
	case errors.Is(err, accounts.ErrInactive):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "account is deactivated"})
	case errors.Is(err, accounts.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
