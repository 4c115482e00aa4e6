package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/arklim/platform-authn/internal/infra/logger"
)

// ErrorResponse represents a generic error payload with a request ID for
// debugging.
type ErrorResponse struct {
	Error     string   `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
	Redirect  string   `json:"redirect,omitempty"`
	Messages  []string `json:"messages,omitempty"`
}

// NewErrorResponse creates an error response with the request ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	var requestID string
	if id, ok := c.Request.Context().Value(logger.RequestIDKey{}).(string); ok {
		requestID = id
	}

	return ErrorResponse{
		Error:     errorMsg,
		RequestID: requestID,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the login endpoint. Setting identity
// to the configured sentinel value makes the secret an API key.
type LoginRequest struct {
	Identity string `json:"identity" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

// PrincipalSummary describes a minimal view of the authenticated principal.
type PrincipalSummary struct {
	ID          string `json:"id"`
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name,omitempty"`
	SiteAdmin   bool   `json:"site_admin,omitempty"`
}

// LoginResponse is returned on successful authentication.
type LoginResponse struct {
	AccessToken         string           `json:"access_token"`
	Principal           PrincipalSummary `json:"principal"`
	SecondaryAuthExempt bool             `json:"secondary_auth_exempt,omitempty"`
}

// ChangePasswordRequest defines the payload for the password change endpoint.
type ChangePasswordRequest struct {
	Identity        string `json:"identity" binding:"required"`
	CurrentSecret   string `json:"current_secret" binding:"required"`
	NewSecret       string `json:"new_secret" binding:"required"`
	NewSecretRepeat string `json:"new_secret_repeat" binding:"required"`
}

// VerifyRequest defines the payload for the verification endpoint.
type VerifyRequest struct {
	Identity string `json:"identity" binding:"required"`
	Token    string `json:"token" binding:"required"`
}
