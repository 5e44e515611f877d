package classifier

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindTransport Kind = iota + 1
	KindForbidden
	KindTimeout
	KindServiceUnavailable
	KindInvalidEntity
	KindInvalidOutputFormat
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindForbidden:
		return "forbidden"
	case KindTimeout:
		return "timeout"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindInvalidEntity:
		return "invalid_entity"
	case KindInvalidOutputFormat:
		return "invalid_output_format"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. ErrThirdParty matches every *Error.
var (
	ErrThirdParty          = errors.New("third party error")
	ErrTransport           = errors.New("third party transport error")
	ErrForbidden           = errors.New("third party forbidden")
	ErrTimeout             = errors.New("third party timeout")
	ErrServiceUnavailable  = errors.New("third party service unavailable")
	ErrInvalidEntity       = errors.New("third party invalid entity")
	ErrInvalidOutputFormat = errors.New("third party invalid output format")
)

var kindSentinels = map[Kind]error{
	KindTransport:           ErrTransport,
	KindForbidden:           ErrForbidden,
	KindTimeout:             ErrTimeout,
	KindServiceUnavailable:  ErrServiceUnavailable,
	KindInvalidEntity:       ErrInvalidEntity,
	KindInvalidOutputFormat: ErrInvalidOutputFormat,
}

// Error is returned by strategies for every remote failure.
type Error struct {
	Kind     Kind
	Message  string
	Body     string
	Status   int
	Endpoint string
	Host     string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind membership. A service unavailable error is also an
// invalid entity so both follow the same failure policy.
func (e *Error) Is(target error) bool {
	if target == ErrThirdParty {
		return true
	}
	if target == ErrInvalidEntity && e.Kind == KindServiceUnavailable {
		return true
	}
	return kindSentinels[e.Kind] == target
}

// Degradable reports whether err may be swallowed under PolicyDegrade.
func Degradable(err error) bool {
	return errors.Is(err, ErrInvalidEntity) || errors.Is(err, ErrInvalidOutputFormat)
}

func invalidOutputFormat(value any, body string) *Error {
	shown := value
	if value == nil {
		shown = ""
	}
	return &Error{
		Kind:    KindInvalidOutputFormat,
		Message: fmt.Sprintf("Unexpected value received : '%v'. Expected to be in %v", shown, Labels),
		Body:    body,
	}
}
