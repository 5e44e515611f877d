package classifier

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Is_MatchesKindAndUmbrella(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind     Kind
		sentinel error
	}{
		{KindTransport, ErrTransport},
		{KindForbidden, ErrForbidden},
		{KindTimeout, ErrTimeout},
		{KindServiceUnavailable, ErrServiceUnavailable},
		{KindInvalidEntity, ErrInvalidEntity},
		{KindInvalidOutputFormat, ErrInvalidOutputFormat},
	}
	for _, tt := range tests {
		err := fmt.Errorf("wrapped: %w", &Error{Kind: tt.kind, Message: "boom"})
		if !errors.Is(err, tt.sentinel) {
			t.Errorf("%s: expected errors.Is(%v)", tt.kind, tt.sentinel)
		}
		if !errors.Is(err, ErrThirdParty) {
			t.Errorf("%s: expected errors.Is(ErrThirdParty)", tt.kind)
		}
	}
}

func TestError_Is_ServiceUnavailableIsInvalidEntity(t *testing.T) {
	t.Parallel()

	err := &Error{Kind: KindServiceUnavailable}
	if !errors.Is(err, ErrInvalidEntity) {
		t.Error("expected service unavailable to match ErrInvalidEntity")
	}
	if errors.Is(&Error{Kind: KindInvalidEntity}, ErrServiceUnavailable) {
		t.Error("invalid entity must not match ErrServiceUnavailable")
	}
	if errors.Is(&Error{Kind: KindForbidden}, ErrTimeout) {
		t.Error("forbidden must not match ErrTimeout")
	}
}

func TestDegradable(t *testing.T) {
	t.Parallel()

	if !Degradable(&Error{Kind: KindInvalidEntity}) {
		t.Error("invalid entity should be degradable")
	}
	if !Degradable(&Error{Kind: KindInvalidOutputFormat}) {
		t.Error("invalid output format should be degradable")
	}
	if !Degradable(&Error{Kind: KindServiceUnavailable}) {
		t.Error("service unavailable should be degradable")
	}
	for _, k := range []Kind{KindTransport, KindForbidden, KindTimeout} {
		if Degradable(&Error{Kind: k}) {
			t.Errorf("%s should not be degradable", k)
		}
	}
	if Degradable(errors.New("plain")) {
		t.Error("plain errors should not be degradable")
	}
}

func TestError_Unwrap_KeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := &Error{Kind: KindTransport, Message: "request failed", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}

func TestInvalidOutputFormat_Message(t *testing.T) {
	t.Parallel()

	err := invalidOutputFormat("ham", `{"spam":"ham"}`)
	want := "Unexpected value received : 'ham'. Expected to be in [SPAM NOT_SPAM]"
	if err.Message != want {
		t.Errorf("expected %q, got %q", want, err.Message)
	}
	if err.Body != `{"spam":"ham"}` {
		t.Errorf("expected raw body to be kept, got %q", err.Body)
	}

	if got := invalidOutputFormat(nil, "").Message; !strings.Contains(got, "''") {
		t.Errorf("expected empty value for nil, got %q", got)
	}
}
