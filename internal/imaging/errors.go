package imaging

import "fmt"

// DecodeError is returned when source bytes cannot be parsed as their
// declared kind
type DecodeError struct {
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	kind := e.Kind
	if kind == KindUnknown {
		kind = "unknown"
	}
	return fmt.Sprintf("decoding %s source: %v", kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
