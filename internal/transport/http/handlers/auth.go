package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/platform-authn/internal/core/domain"
	"github.com/arklim/platform-authn/internal/infra/security"
	"github.com/arklim/platform-authn/internal/usecase"
)

// AuthHandler exposes the single authentication entry point.
type AuthHandler struct {
	auth   *usecase.AuthenticationService
	signer *security.SessionSigner
	logger *zap.Logger
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(auth *usecase.AuthenticationService, signer *security.SessionSigner, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, signer: signer, logger: log}
}

// RegisterRoutes binds authentication routes to the provided router group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/login", h.Login)
}

// Login authenticates an identity/secret pair and issues an access token.
// Password and API key logins share this endpoint; the identity field set to
// the sentinel value selects the API key path.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "identity and secret are required"))
		return
	}

	result := h.auth.Authenticate(c.Request.Context(), usecase.AuthenticationRequest{
		Identity:   req.Identity,
		Secret:     req.Secret,
		RemoteAddr: c.ClientIP(),
	})

	if !result.Succeeded() {
		h.respondFailure(c, result)
		return
	}

	// Authenticate reports inactive accounts as structural successes; the
	// blocking decision happens here.
	if !result.Principal.Active {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, string(domain.FailureInactive)))
		return
	}

	token, err := h.signer.Issue(result.Principal.ID, result.Principal.Identity, result.Principal.SiteAdmin)
	if err != nil {
		h.logger.Error("issue access token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to issue access token"))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		Principal: PrincipalSummary{
			ID:          result.Principal.ID,
			Identity:    result.Principal.Identity,
			DisplayName: result.Principal.DisplayName,
			SiteAdmin:   result.Principal.SiteAdmin,
		},
		SecondaryAuthExempt: result.SecondaryAuthExempt,
	})
}

func (h *AuthHandler) respondFailure(c *gin.Context, result domain.AuthenticationResult) {
	switch result.Reason {
	case domain.FailureInvalidIdentityFormat:
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "identity must be a valid email address"))
	case domain.FailureUserDoesNotExist, domain.FailureBadPassword, domain.FailureBadApiKey:
		// One generic message for all credential failures.
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credentials"))
	case domain.FailureComplexity:
		resp := NewErrorResponse(c, "password does not satisfy the current policy")
		resp.Redirect = result.RedirectTarget
		resp.Messages = result.Messages
		c.JSON(http.StatusForbidden, resp)
	case domain.FailureExpired:
		resp := NewErrorResponse(c, "password has expired")
		resp.Redirect = result.RedirectTarget
		c.JSON(http.StatusForbidden, resp)
	case domain.FailureThrottled:
		c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many attempts, try again later"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication unavailable"))
	}
}
