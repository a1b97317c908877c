// Package errors defines the error type shared by every metastage service.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes. Services choose the code, transports map it to their own
// status representation.
const (
	EInternal       = "internal error"
	ENotImplemented = "not implemented"
	ENotFound       = "not found"
	EConflict       = "conflict"    // a precondition of the operation does not hold
	EInvalid        = "invalid"     // validation failed
	EUnavailable    = "unavailable" // the broker or a store cannot serve the request
)

const internalMessage = "An internal error has occurred."

// Error is the error struct of the metadata platform.
//
// Code is meant for automated handling, Msg for the operator reading a log
// or an API response. Op and Err chain errors into a logical stack:
//
//	&Error{
//	    Code: EUnavailable,
//	    Op:   "metastore/Save",
//	    Msg:  `unable to write "orders" to store "topics"`,
//	    Err:  err,
//	}
//
// A wrapper with an empty Code or Msg inherits them from the wrapped error.
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Error joins the messages of the chain.
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

// Unwrap returns the wrapped error so errors.Is and errors.As see through it.
func (e *Error) Unwrap() error {
	return e.Err
}

// find returns the first non-empty field selected by pick along the chain of
// platform errors in err. The walk stops at the first foreign error.
func find(err error, pick func(*Error) string) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) || e == nil {
			return ""
		}
		if v := pick(e); v != "" {
			return v
		}
		err = e.Err
	}
	return ""
}

// ErrorCode returns the code of err. Errors without a code are internal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if code := find(err, func(e *Error) string { return e.Code }); code != "" {
		return code
	}
	return EInternal
}

// ErrorOp returns the outermost op of err, if any.
func ErrorOp(err error) string {
	return find(err, func(e *Error) string { return e.Op })
}

// ErrorMessage returns the human-readable message of err. Foreign errors
// get a generic message so their details do not leak to clients.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := find(err, func(e *Error) string { return e.Msg }); msg != "" {
		return msg
	}
	return internalMessage
}

// errJSON is the wire form of an Error. Err holds either a nested errJSON
// or the text of a foreign error.
type errJSON struct {
	Code string          `json:"code"`
	Msg  string          `json:"message,omitempty"`
	Op   string          `json:"op,omitempty"`
	Err  json.RawMessage `json:"error,omitempty"`
}

// MarshalJSON encodes the whole chain.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := errJSON{Code: e.Code, Msg: e.Msg, Op: e.Op}
	if e.Err != nil {
		var (
			inner []byte
			err   error
		)
		if ie, ok := e.Err.(*Error); ok {
			inner, err = ie.MarshalJSON()
		} else {
			inner, err = json.Marshal(e.Err.Error())
		}
		if err != nil {
			return nil, err
		}
		out.Err = inner
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a chain written by MarshalJSON. Foreign errors come
// back as plain errors carrying their text.
func (e *Error) UnmarshalJSON(b []byte) error {
	var in errJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*e = Error{Code: in.Code, Msg: in.Msg, Op: in.Op}
	if len(in.Err) == 0 || string(in.Err) == "null" {
		return nil
	}

	var text string
	if err := json.Unmarshal(in.Err, &text); err == nil {
		e.Err = errors.New(text)
		return nil
	}
	inner := new(Error)
	if err := inner.UnmarshalJSON(in.Err); err != nil {
		return err
	}
	e.Err = inner
	return nil
}
