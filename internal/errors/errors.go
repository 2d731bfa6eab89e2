// Package errors layers the backtest core's six terminal result codes
// (spec §7) on top of a small message-wrapping helper, so call sites that
// only need caller-context (the codec package's I/O failures, for
// instance) can use New/Wrap without ever touching a Code, while call
// sites that need a dispatchable outcome (order admission, tape
// validation, runtime control) use NewCoded/WrapCoded and recover the
// Code later via CodeOf.
package errors

import "errors"

// Code is the backtest core's distinct return-code kind. Every public API
// method that can fail in a way a strategy needs to branch on returns one
// of these, recoverable from any error value via CodeOf.
type Code uint8

const (
	CodeOK Code = iota
	CodeDataInvalid
	CodeOrderRejected
	CodeTimeout
	CodeEndOfData
	CodeStopped
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeDataInvalid:
		return "DATA_INVALID"
	case CodeOrderRejected:
		return "ORDER_REJECTED"
	case CodeTimeout:
		return "TIMEOUT"
	case CodeEndOfData:
		return "END_OF_DATA"
	case CodeStopped:
		return "STOPPED"
	case CodeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

const sep = ", err: "

// annotatedError prefixes a cause with a short call-site message, the
// shape every Wrap/WrapCoded call produces.
type annotatedError struct {
	msg string
	err error
}

func (e annotatedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + sep + e.err.Error()
}

func (e annotatedError) Unwrap() error {
	if e.err == nil {
		return errors.New(e.msg)
	}
	return e.err
}

var _ error = (*annotatedError)(nil)

// New returns a plain, uncoded error (mirrors stdlib errors.New), for
// call sites that need only a message and no dispatchable Code.
func New(text string) error {
	return errors.New(text)
}

// Wrap prefixes err with text. Returns nil for a nil err, and err itself
// unchanged for an empty text.
func Wrap(err error, text string) error {
	if err == nil {
		return nil
	}
	if len(text) == 0 {
		return err
	}
	return &annotatedError{msg: text, err: err}
}

// CodedError is an annotatedError additionally carrying one of the Codes
// above, recoverable later via CodeOf.
type CodedError struct {
	annotatedError
	code Code
}

// NewCoded builds a CodedError with no wrapped cause.
func NewCoded(code Code, text string) *CodedError {
	return &CodedError{annotatedError: annotatedError{msg: text}, code: code}
}

// WrapCoded prefixes err with text and attaches code.
func WrapCoded(code Code, err error, text string) *CodedError {
	return &CodedError{annotatedError: annotatedError{msg: text, err: err}, code: code}
}

// Code returns the code this error carries.
func (e *CodedError) Code() Code { return e.code }

// CodeOf extracts the Code carried by err, defaulting to CodeInternal
// when err does not wrap a *CodedError, and CodeOK for a nil err.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	for {
		if c, ok := err.(*CodedError); ok {
			return c.code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return CodeInternal
		}
		next := u.Unwrap()
		if next == nil {
			return CodeInternal
		}
		err = next
	}
}
