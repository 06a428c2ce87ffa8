// Package errors implements coded errors. A coded error is identified by a
// (module, code) pair, so it can be reported as plain data and rebuilt on
// the other side with its identity intact.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	// UnknownModule is the module reported for errors that are not coded.
	UnknownModule = "unknown"

	// CodeNoError is the reserved "no error" code.
	CodeNoError = 0
)

// Re-exports so this package can be used as a replacement for errors.
var (
	As     = errors.As
	Is     = errors.Is
	Unwrap = errors.Unwrap
)

type key struct {
	module string
	code   uint32
}

func (k key) String() string {
	return fmt.Sprintf("%s-%d", k.module, k.code)
}

var (
	registryLock sync.RWMutex
	registry     = make(map[key]*codedError)

	errUnknown = New(UnknownModule, 1, "unknown error").(*codedError)
)

type codedError struct {
	key
	msg string
}

func (e *codedError) Error() string {
	return e.msg
}

type contextError struct {
	err     error
	context string
}

func (e *contextError) Error() string {
	return e.err.Error() + ": " + e.context
}

func (e *contextError) Unwrap() error {
	return e.err
}

// New registers a coded error. It panics if the pair is taken or the code
// is CodeNoError.
func New(module string, code uint32, msg string) error {
	if code == CodeNoError {
		panic(fmt.Errorf("errors: code %d is reserved", CodeNoError))
	}

	e := &codedError{key: key{module, code}, msg: msg}

	registryLock.Lock()
	defer registryLock.Unlock()

	if prev, ok := registry[e.key]; ok {
		panic(fmt.Errorf("errors: %s already registered as '%s'", e.key, prev.msg))
	}
	registry[e.key] = e

	return e
}

// WithContext annotates err. The result matches err under Is and reports
// the same code.
func WithContext(err error, context string) error {
	if context == "" {
		return err
	}
	return &contextError{err: err, context: context}
}

// Context returns the annotation added by WithContext, if any.
func Context(err error) string {
	var ce *contextError
	if As(err, &ce) {
		return ce.context
	}
	return ""
}

// Code returns the module and code of err. Errors that are not coded
// report the unknown error, nil reports CodeNoError.
func Code(err error) (string, uint32) {
	if err == nil {
		return "", CodeNoError
	}

	var ce *codedError
	if !As(err, &ce) {
		ce = errUnknown
	}
	return ce.module, ce.code
}

// FromCode rebuilds an error from what Code and Error reported. Registered
// errors come back as themselves, with any context re-attached.
func FromCode(module string, code uint32, message string) error {
	registryLock.RLock()
	e, ok := registry[key{module, code}]
	registryLock.RUnlock()

	if !ok || e == errUnknown {
		return &codedError{key: key{module, code}, msg: message}
	}
	if message == e.msg {
		return e
	}
	return WithContext(e, strings.TrimPrefix(message, e.msg+": "))
}
