// Package api executes REST calls against the clinic service and reduces
// each one to either a typed value or a classified *Error.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	errNotEnvelope     = errors.New("api: body is not an envelope")
	errMissingError    = errors.New("api: success=false without error")
	errUnexpectedError = errors.New("api: success=true with error")
)

// ErrorDetail is the error member of the envelope. Some auth endpoints send
// it as a bare string; both forms decode here.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (d *ErrorDetail) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.Code = ""
		d.Message = s
		return nil
	}
	type plain ErrorDetail
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = ErrorDetail(p)
	return nil
}

func (d *ErrorDetail) empty() bool {
	return d == nil || (d.Code == "" && d.Message == "")
}

// Envelope is the wire wrapper around every response body.
type Envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorDetail    `json:"error"`
	Message string          `json:"message,omitempty"`
}

// decodeEnvelope parses raw and enforces the success/error invariant.
// It returns the data on success, a business *Error on success=false, or a
// plain error when the body is not a valid envelope.
func decodeEnvelope[T any](status int, raw []byte) (T, error) {
	var zero T

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, fmt.Errorf("%w: %v", errNotEnvelope, err)
	}
	if env.Success == nil {
		return zero, errNotEnvelope
	}

	if !*env.Success {
		if env.Error.empty() {
			if env.Message != "" {
				return zero, newBusinessError(status, "", env.Message)
			}
			return zero, errMissingError
		}
		msg := env.Error.Message
		if msg == "" {
			msg = MsgConnection
		}
		return zero, newBusinessError(status, env.Error.Code, msg)
	}

	if !env.Error.empty() {
		return zero, errUnexpectedError
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return zero, nil
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("api: decode data: %w", err)
	}
	return out, nil
}
