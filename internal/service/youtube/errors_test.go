package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
)

func TestClassifyError(t *testing.T) {
	apiErr := func(code int, reason, message string) error {
		e := &googleapi.Error{Code: code, Message: message}
		if reason != "" {
			e.Errors = []googleapi.ErrorItem{{Reason: reason}}
		}
		return fmt.Errorf("call failed: %w", e)
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"quota exceeded", apiErr(403, "quotaExceeded", ""), apperrors.CodeQuotaExceeded},
		{"daily limit", apiErr(403, "dailyLimitExceeded", ""), apperrors.CodeQuotaExceeded},
		{"key invalid", apiErr(400, "keyInvalid", ""), apperrors.CodeInvalidCredential},
		{"unauthorized", apiErr(401, "", ""), apperrors.CodeInvalidCredential},
		{"key message", apiErr(400, "badRequest", "API key not valid. Please pass a valid API key."), apperrors.CodeInvalidCredential},
		{"api disabled", apiErr(403, "accessNotConfigured", ""), apperrors.CodeInvalidCredential},
		{"rate limited", apiErr(429, "", ""), apperrors.CodeTransport},
		{"user rate limit", apiErr(403, "userRateLimitExceeded", ""), apperrors.CodeTransport},
		{"server error", apiErr(500, "backendError", ""), apperrors.CodeTransport},
		{"not found", apiErr(404, "channelNotFound", ""), apperrors.CodeExternal},
		{"deadline", context.DeadlineExceeded, apperrors.CodeTransport},
		{"url error", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}, apperrors.CodeTransport},
		{"unknown", errors.New("boom"), apperrors.CodeExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err, "channels.list")
			assert.Equal(t, tt.want, got.Code)
			assert.Contains(t, got.Error(), "channels.list")
			assert.ErrorIs(t, got, tt.err)
		})
	}
}
