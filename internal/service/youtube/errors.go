package youtube

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
)

// classifyError maps API failures onto the source error taxonomy
func classifyError(err error, call string) *apperrors.AppError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		reason := ""
		if len(apiErr.Errors) > 0 {
			reason = apiErr.Errors[0].Reason
		}

		switch {
		case reason == "quotaExceeded" || reason == "dailyLimitExceeded":
			return apperrors.Wrap(err, apperrors.CodeQuotaExceeded, call+": quota exceeded")

		case reason == "keyInvalid" || reason == "keyExpired" || reason == "forbidden" ||
			reason == "accessNotConfigured" || reason == "ipRefererBlocked" ||
			apiErr.Code == 401 || strings.Contains(apiErr.Message, "API key not valid"):
			return apperrors.Wrap(err, apperrors.CodeInvalidCredential, call+": credential rejected")

		case apiErr.Code >= 500 || apiErr.Code == 429 ||
			reason == "rateLimitExceeded" || reason == "userRateLimitExceeded":
			return apperrors.Wrap(err, apperrors.CodeTransport, call+": transient API failure")

		default:
			return apperrors.Wrap(err, apperrors.CodeExternal, call+": request failed")
		}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return apperrors.Wrap(err, apperrors.CodeTransport, call+": transport failure")
	}

	return apperrors.Wrap(err, apperrors.CodeExternal, call+": request failed")
}
