package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/platform-authn/internal/core/domain"
	"github.com/arklim/platform-authn/internal/repository"
	"github.com/arklim/platform-authn/internal/usecase"
)

// PasswordHandler exposes password change and verification endpoints.
type PasswordHandler struct {
	auth   *usecase.AuthenticationService
	creds  *usecase.CredentialService
	logger *zap.Logger
}

// NewPasswordHandler constructs a password handler.
func NewPasswordHandler(auth *usecase.AuthenticationService, creds *usecase.CredentialService, log *zap.Logger) *PasswordHandler {
	return &PasswordHandler{auth: auth, creds: creds, logger: log}
}

// RegisterRoutes binds password lifecycle routes to the provided router group.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/change", h.Change)
	r.POST("/verify", h.Verify)
}

// Change rotates a password after re-authenticating with the current secret.
func (h *PasswordHandler) Change(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "identity, current secret, and new secret are required"))
		return
	}

	// The current secret must still match; an expired or non-compliant
	// password is exactly what this endpoint exists to fix, so those
	// failures do not block the change.
	result := h.auth.Authenticate(c.Request.Context(), usecase.AuthenticationRequest{
		Identity:   req.Identity,
		Secret:     req.CurrentSecret,
		RemoteAddr: c.ClientIP(),
	})
	switch result.Reason {
	case "", domain.FailureComplexity, domain.FailureExpired:
	case domain.FailureThrottled:
		c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many attempts, try again later"))
		return
	case domain.FailureConfigurationError:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication unavailable"))
		return
	default:
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credentials"))
		return
	}

	messages, err := h.creds.SetPassword(c.Request.Context(), req.Identity, req.NewSecret, req.NewSecretRepeat)
	if err != nil {
		if errors.Is(err, usecase.ErrPolicyViolation) {
			resp := NewErrorResponse(c, "new password does not satisfy the policy")
			resp.Messages = messages
			c.JSON(http.StatusUnprocessableEntity, resp)
			return
		}
		h.logger.Error("set password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to change password"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}

// Verify consumes a pending verification token for an identity.
func (h *PasswordHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "identity and token are required"))
		return
	}

	if err := h.creds.Verify(c.Request.Context(), req.Identity, req.Token); err != nil {
		switch {
		case errors.Is(err, usecase.ErrVerificationMismatch):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid verification token"))
		case errors.Is(err, usecase.ErrAlreadyVerified):
			c.JSON(http.StatusConflict, NewErrorResponse(c, "identity already verified"))
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "identity not found"))
		default:
			h.logger.Error("verify identity", zap.Error(err))
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to verify identity"))
		}
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "identity verified"})
}
