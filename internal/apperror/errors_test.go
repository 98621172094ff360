package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsAppError(t *testing.T) {
	t.Run("unwraps wrapped app error", func(t *testing.T) {
		wrapped := fmt.Errorf("cancelling: %w", Conflict("already cancelled"))

		got := AsAppError(wrapped)
		if got.Code != CodeConflict {
			t.Fatalf("expected code %s, got %s", CodeConflict, got.Code)
		}
		if got.HTTPStatus != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, got.HTTPStatus)
		}
	})

	t.Run("plain error becomes internal with its message", func(t *testing.T) {
		cause := errors.New("disk I/O error")

		got := AsAppError(cause)
		if got.Code != CodeInternal {
			t.Fatalf("expected code %s, got %s", CodeInternal, got.Code)
		}
		if got.Message != "disk I/O error" {
			t.Fatalf("unexpected message %q", got.Message)
		}
		if !errors.Is(got, cause) {
			t.Fatalf("expected cause to be preserved")
		}
	})
}

func TestHasCode(t *testing.T) {
	if !HasCode(NotFound("reservation"), CodeNotFound) {
		t.Fatalf("expected not found code")
	}
	if HasCode(errors.New("x"), CodeNotFound) {
		t.Fatalf("plain error must not match")
	}
	if got := NotFound("reservation").Message; got != "reservation not found" {
		t.Fatalf("unexpected message %q", got)
	}
}
