package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/case-dispatch/internal/errors"
	"github.com/target/case-dispatch/internal/http/validation"
)

// statusForCode maps application error codes to HTTP statuses.
func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeUnavailable, apperrors.ErrCodeCanceled:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError renders err returned by a service call. Validation, not-found and conflict
// errors carry their message to the client; storage failures are logged and reported generically.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var fe *validation.FieldErrors
	if errors.As(err, &fe) {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: string(apperrors.ErrCodeValidation),
			Err:     fe,
			Fields:  fe.Fields,
		})
		return
	}

	mapped := err
	if apperrors.GetCode(mapped) == "" {
		mapped = apperrors.MapDBError(err)
	}

	var appErr *apperrors.AppError
	if !errors.As(mapped, &appErr) {
		appErr = &apperrors.AppError{Code: apperrors.ErrCodeInternal, Message: "internal error", Cause: err}
	}

	status := statusForCode(appErr.Code)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
	}

	message := appErr.Message
	if appErr.Code == apperrors.ErrCodeInternal {
		message = "internal error"
	}
	var fields map[string]string
	if appErr.Field != "" {
		fields = map[string]string{appErr.Field: message}
	}
	WriteError(w, ErrorParams{
		Code:    status,
		ErrCode: string(appErr.Code),
		Err:     errors.New(message),
		Fields:  fields,
	})
}
