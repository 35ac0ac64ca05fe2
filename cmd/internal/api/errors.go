package api

import (
	"errors"
	"net/http"

	"tasklist/cmd/internal/fault"

	"github.com/getsentry/sentry-go"
)

// statusFor maps a fault kind to its HTTP status. Unclassified errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fault.ErrUnauthorized):
		return http.StatusUnauthorized
	case fault.IsForbidden(err):
		return http.StatusForbidden
	case fault.IsNotFound(err):
		return http.StatusNotFound
	case fault.IsInvalidInput(err), fault.IsInvariant(err), fault.IsInvalidInvite(err):
		return http.StatusBadRequest
	case fault.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeFault renders err. Server errors are logged, reported to Sentry, and
// never echo their text to the client.
func (h *Handler) writeFault(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op+".fail", "err", err, "path", r.URL.Path)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	code, msg := fault.Code(err), fault.Message(err)
	if code == "" {
		code, msg = defaultCode(status), http.StatusText(status)
	}
	writeError(w, status, code, msg)
}

func defaultCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "invalid_request"
	}
}
