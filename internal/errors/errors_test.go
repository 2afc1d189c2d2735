package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "job not found"},
			want: "job not found",
		},
		{
			name: "error with cause",
			err:  &AppError{Code: ErrCodeInternal, Message: "failed to claim", Cause: errors.New("disk I/O")},
			want: "failed to claim: disk I/O",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrapf(cause, ErrCodeUnavailable, "storage %s", "down")
	if err.Code != ErrCodeUnavailable || err.Message != "storage down" {
		t.Errorf("Wrapf() = %+v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Wrapf() should unwrap to cause")
	}
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Errorf("Wrap(nil) should be nil")
	}
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NotFoundf("job %d not found", 9))
	if !IsNotFound(wrapped) || IsConflict(wrapped) {
		t.Errorf("IsNotFound() should see through wrapping")
	}
	if !IsValidation(ValidationField("priority", "bad")) || GetField(ValidationField("priority", "bad")) != "priority" {
		t.Errorf("ValidationField() should carry field")
	}
	if !IsConflict(Conflictf("dup %s", "x")) {
		t.Errorf("Conflictf() code mismatch")
	}
	if !IsUnavailable(&AppError{Code: ErrCodeUnavailable}) || !IsTimeout(&AppError{Code: ErrCodeTimeout}) {
		t.Errorf("predicate mismatch")
	}
	if GetCode(errors.New("plain")) != "" || GetField(errors.New("plain")) != "" {
		t.Errorf("plain errors have no code")
	}
	if Validation("x").Code != ErrCodeValidation || NotFound("x").Code != ErrCodeNotFound {
		t.Errorf("constructor code mismatch")
	}
}
