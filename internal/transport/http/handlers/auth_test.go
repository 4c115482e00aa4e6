package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/platform-authn/internal/core/domain"
)

func TestRespondFailureStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		reason domain.FailureReason
		status int
	}{
		{domain.FailureInvalidIdentityFormat, http.StatusBadRequest},
		{domain.FailureUserDoesNotExist, http.StatusUnauthorized},
		{domain.FailureBadPassword, http.StatusUnauthorized},
		{domain.FailureBadApiKey, http.StatusUnauthorized},
		{domain.FailureComplexity, http.StatusForbidden},
		{domain.FailureExpired, http.StatusForbidden},
		{domain.FailureThrottled, http.StatusTooManyRequests},
		{domain.FailureConfigurationError, http.StatusInternalServerError},
	}

	h := NewAuthHandler(nil, nil, zaptest.NewLogger(t))
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)

		h.respondFailure(c, domain.AuthenticationResult{Reason: tc.reason})

		if w.Code != tc.status {
			t.Fatalf("reason %q: got status %d, want %d", tc.reason, w.Code, tc.status)
		}
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewAuthHandler(nil, nil, zaptest.NewLogger(t))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"identity":"alice@example.com"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
}
