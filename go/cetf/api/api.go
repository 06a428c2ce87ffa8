// Package api implements the tag store API.
package api

import (
	"github.com/BadBoiLabs/cetf/go/common/errors"
	"github.com/BadBoiLabs/cetf/go/consensus/api/transaction"
)

// ModuleName is a unique module name for the tag store module.
const ModuleName = "cetf"

var (
	// ErrForbidden is the error returned when a privileged-only call is
	// made by an unprivileged caller or the store is constructed twice.
	ErrForbidden = errors.New(ModuleName, 1, "cetf: forbidden")

	// ErrNotInitialized is the error returned when the tag store is used
	// before it has been constructed.
	ErrNotInitialized = errors.New(ModuleName, 2, "cetf: not initialized")

	// ErrStorage is the error returned when reading or writing the
	// underlying node database fails.
	ErrStorage = errors.New(ModuleName, 3, "cetf: storage failure")

	// ErrInvalidArgument is the error returned on malformed arguments.
	ErrInvalidArgument = errors.New(ModuleName, 4, "cetf: invalid argument")

	// ErrInvalidMethod is the error returned for an unknown method.
	ErrInvalidMethod = errors.New(ModuleName, 5, "cetf: invalid method")

	// MethodConstructor is the method name for constructing the tag store.
	MethodConstructor = transaction.NewMethodName(ModuleName, "Constructor", nil)
	// MethodEnqueueTag is the method name for enqueuing a tag.
	MethodEnqueueTag = transaction.NewMethodName(ModuleName, "EnqueueTag", EnqueueTagParams{})
	// MethodClearTag is the method name for clearing a tag queue.
	MethodClearTag = transaction.NewMethodName(ModuleName, "ClearTag", ClearTagParams{})

	// Methods is the list of all methods supported by the tag store.
	Methods = []transaction.MethodName{
		MethodConstructor,
		MethodEnqueueTag,
		MethodClearTag,
	}
)

// EnqueueTagParams are the parameters of an EnqueueTag call.
type EnqueueTagParams struct {
	Tag Tag `json:"tag"`
}

// ClearTagParams are the parameters of a ClearTag call.
//
// Height overrides the caller nonce as the height to clear.
type ClearTagParams struct {
	Height *Height `json:"height,omitempty"`
}
