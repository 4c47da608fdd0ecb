package errors

import (
	"fmt"
)

type Error interface {
	error

	Code() int
	Kind() string
	Message() string
	Cause() error
}

// DefaultCode defines the code that will be used by default when
// none is given. It is set to 500, Internal Server Error
var DefaultCode = 500

// DefaultKind is the machine-readable code used when none is given. The HTTP
// layer treats errors carrying it as unexpected and hides their message from
// clients.
var DefaultKind = "INTERNAL_SERVER_ERROR"

type myError struct {
	code  int
	kind  string
	msg   string
	cause *myError
}

func (err *myError) Error() string {
	if err.cause == nil {
		return err.msg
	}

	return fmt.Sprintf("%s: %v", err.msg, err.cause)
}

func (err *myError) Code() int {
	return err.code
}

func (err *myError) Kind() string {
	return err.kind
}

func (err *myError) Message() string {
	return err.msg
}

func (err *myError) Cause() error {
	return err.cause
}

type ErrorEnricher func(error) error

func WithCode(code int) func(error) error {
	return func(err error) error {
		switch err := err.(type) {
		case nil:
			return nil
		case *myError:
			err.code = code
			return err
		}

		// default
		return &myError{
			msg:  err.Error(),
			code: code,
			kind: DefaultKind,
		}
	}
}

func WithKind(kind string) func(error) error {
	return func(err error) error {
		switch err := err.(type) {
		case nil:
			return nil
		case *myError:
			err.kind = kind
			return err
		}

		return &myError{
			msg:  err.Error(),
			code: DefaultCode,
			kind: kind,
		}
	}
}

func WithCause(cause error) func(error) error {
	var myCause *myError
	switch cause := cause.(type) {
	case *myError:
		myCause = cause
	default:
		myCause = &myError{msg: cause.Error(), code: DefaultCode, kind: DefaultKind}
	}

	return func(err error) error {
		if myErr, ok := err.(*myError); ok {
			myErr.cause = myCause
			return myErr
		}

		return &myError{
			msg:   err.Error(),
			code:  myCause.code,
			kind:  myCause.kind,
			cause: myCause,
		}
	}
}

func New(msg string, fs ...ErrorEnricher) error {
	var err error
	err = &myError{
		msg:  msg,
		code: DefaultCode,
		kind: DefaultKind,
	}

	for _, f := range fs {
		err = f(err)
	}

	return err
}
