package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", Transient(errors.New("overloaded"), 503), true},
		{"wrapped", fmt.Errorf("fetch: %w", Transient(errors.New("rate limited"), 429)), true},
		{"net timeout", timeoutErr{}, true},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"message", errors.New("read tcp 1.2.3.4: i/o timeout"), true},
		{"plain", errors.New("page has no codes"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientStatus(code) {
			t.Errorf("%d should be transient", code)
		}
	}
	for _, code := range []int{200, 301, 400, 403, 404, 501} {
		if IsTransientStatus(code) {
			t.Errorf("%d should not be transient", code)
		}
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	te := Transient(inner, 500)
	if !errors.Is(te, inner) {
		t.Error("expected Unwrap to expose the inner error")
	}
	if te.Error() != "boom" {
		t.Errorf("unexpected message %q", te.Error())
	}
}
