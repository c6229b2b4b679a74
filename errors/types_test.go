package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew_FieldsRoundTrip(t *testing.T) {
	cause := stderrors.New("underlying")
	err := New(ErrCodeDirectoryError, "directory call failed", "check connectivity", cause)

	if err.Error() != "directory call failed" {
		t.Errorf("Error() = %q, want %q", err.Error(), "directory call failed")
	}
	if err.Code() != ErrCodeDirectoryError {
		t.Errorf("Code() = %q, want %q", err.Code(), ErrCodeDirectoryError)
	}
	if err.Suggestion() != "check connectivity" {
		t.Errorf("Suggestion() = %q, want %q", err.Suggestion(), "check connectivity")
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestWithContext_DoesNotMutateOriginal(t *testing.T) {
	base := New(ErrCodeUserNotFound, "no user", "", nil)
	derived := WithContext(base, "username", "alice")

	if len(base.Context()) != 0 {
		t.Errorf("base context = %v, want empty", base.Context())
	}
	if got := derived.Context()["username"]; got != "alice" {
		t.Errorf("derived context username = %q, want %q", got, "alice")
	}
}

func TestConstructors_Codes(t *testing.T) {
	tests := []struct {
		name string
		err  PluginError
		code string
	}{
		{"user not found", NewUserNotFound("alice", "username"), ErrCodeUserNotFound},
		{"ambiguous user", NewAmbiguousUser("alice", "email"), ErrCodeAmbiguousUser},
		{"factor not found", NewFactorNotFound("no default MFA factor found"), ErrCodeFactorNotFound},
		{"directory error", NewDirectoryError("bad response", nil), ErrCodeDirectoryError},
		{"push timeout", NewPushTimeout("push verification timed out"), ErrCodePushTimeout},
		{"configuration error", NewConfigurationError("token fetch failed", nil), ErrCodeConfigurationError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code() != tc.code {
				t.Errorf("Code() = %q, want %q", tc.err.Code(), tc.code)
			}
			if !HasCode(tc.err, tc.code) {
				t.Errorf("HasCode(err, %q) = false, want true", tc.code)
			}
		})
	}
}

func TestNewUserNotFound_ContextAndMessage(t *testing.T) {
	err := NewUserNotFound("alice", "email")

	if got := err.Context()["username"]; got != "alice" {
		t.Errorf("context username = %q, want %q", got, "alice")
	}
	if got := err.Context()["attribute"]; got != "email" {
		t.Errorf("context attribute = %q, want %q", got, "email")
	}
	if !strings.Contains(err.Error(), "alice") || !strings.Contains(err.Error(), "email") {
		t.Errorf("message %q should name the user and the attribute", err.Error())
	}
}

func TestIsPluginError_Wrapped(t *testing.T) {
	inner := NewDirectoryError("poll failed", nil)
	wrapped := fmt.Errorf("verify push: %w", inner)

	pe, ok := IsPluginError(wrapped)
	if !ok {
		t.Fatal("IsPluginError(wrapped) = false, want true")
	}
	if pe.Code() != ErrCodeDirectoryError {
		t.Errorf("Code() = %q, want %q", pe.Code(), ErrCodeDirectoryError)
	}
	if GetCode(wrapped) != ErrCodeDirectoryError {
		t.Errorf("GetCode(wrapped) = %q, want %q", GetCode(wrapped), ErrCodeDirectoryError)
	}
}

func TestIsPluginError_PlainError(t *testing.T) {
	if _, ok := IsPluginError(stderrors.New("plain")); ok {
		t.Error("IsPluginError(plain error) = true, want false")
	}
	if _, ok := IsPluginError(nil); ok {
		t.Error("IsPluginError(nil) = true, want false")
	}
	if GetCode(stderrors.New("plain")) != "" {
		t.Error("GetCode(plain error) should be empty")
	}
}
