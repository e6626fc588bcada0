package cardinity

import "fmt"

// FieldError is a single entry from the gateway's error detail list.
type FieldError struct {
	Field    string `json:"field"`
	Rejected any    `json:"rejected,omitempty"`
	Message  string `json:"message"`
}

// DeclinedError is returned when the gateway accepted the request but
// declined the charge. The partial payment result is retained so callers can
// still record the gateway-issued payment identifier.
type DeclinedError struct {
	Payment *Payment
}

func (e *DeclinedError) Error() string {
	if e.Payment != nil && e.Payment.Error != "" {
		return fmt.Sprintf("cardinity: payment declined: %s", e.Payment.Error)
	}
	return "cardinity: payment declined"
}

// RequestError is returned for malformed or rejected requests (4xx other
// than a decline).
type RequestError struct {
	Status int
	Title  string
	Detail string
	Errors []FieldError
}

func (e *RequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("cardinity: request failed (%d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("cardinity: request failed (%d)", e.Status)
}

// ErrorList flattens the detail entries for logging.
func (e *RequestError) ErrorList() []string {
	out := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		out = append(out, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return out
}

// RuntimeError covers transport failures and gateway-side 5xx responses.
type RuntimeError struct {
	Status int
	Err    error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cardinity: runtime error: %v", e.Err)
	}
	return fmt.Sprintf("cardinity: runtime error (%d)", e.Status)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *RuntimeError) Unwrap() error { return e.Err }
