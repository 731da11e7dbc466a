package fault

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestWrapPreservesMarkerAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrExecution, "mission", "start", "persist status", cause)

	if !errors.Is(err, ErrExecution) {
		t.Fatal("marker lost")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	for _, part := range []string{"mission", "start", "persist status", "disk full"} {
		if !strings.Contains(err.Error(), part) {
			t.Fatalf("message %q missing %q", err.Error(), part)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := Wrap(ErrNotFound, "capture", "trigger", "session s-1", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("marker lost")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Wrap(ErrValidation, "a", "b", "c", nil), http.StatusBadRequest},
		{Wrap(ErrNotFound, "a", "b", "c", nil), http.StatusNotFound},
		{Wrap(ErrPrecondition, "a", "b", "c", nil), http.StatusConflict},
		{Wrap(ErrExecution, "a", "b", "c", nil), http.StatusInternalServerError},
		{Wrap(ErrDelivery, "a", "b", "c", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
