// Package cetf implements the tag store state controller and the host that
// persists its root between calls.
package cetf

import (
	"context"
	"fmt"

	"github.com/BadBoiLabs/cetf/go/cetf/api"
	"github.com/BadBoiLabs/cetf/go/cetf/state"
	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/common/errors"
	"github.com/BadBoiLabs/cetf/go/common/logging"
	"github.com/BadBoiLabs/cetf/go/consensus/api/transaction"
	storage "github.com/BadBoiLabs/cetf/go/storage/api"
)

// Call is a tag store method invocation.
type Call interface {
	// Method returns the method name of the call.
	Method() transaction.MethodName
}

// Construct initializes the tag store.
type Construct struct{}

// Method implements Call.
func (Construct) Method() transaction.MethodName {
	return api.MethodConstructor
}

// EnqueueTag appends a tag to the queue at the caller's height.
type EnqueueTag struct {
	Tag api.Tag
}

// Method implements Call.
func (EnqueueTag) Method() transaction.MethodName {
	return api.MethodEnqueueTag
}

// ClearTag removes the queue at a height. If Height is nil the caller's
// height is cleared.
type ClearTag struct {
	Height *api.Height
}

// Method implements Call.
func (ClearTag) Method() transaction.MethodName {
	return api.MethodClearTag
}

// DecodeCall decodes a transaction into a Call.
func DecodeCall(tx *transaction.Transaction) (Call, error) {
	if err := tx.SanityCheck(); err != nil {
		return nil, errors.WithContext(api.ErrInvalidMethod, err.Error())
	}

	switch tx.Method {
	case api.MethodConstructor:
		return Construct{}, nil
	case api.MethodEnqueueTag:
		var params api.EnqueueTagParams
		if err := tx.UnmarshalBody(&params); err != nil {
			return nil, errors.WithContext(api.ErrInvalidArgument, err.Error())
		}
		return EnqueueTag{Tag: params.Tag}, nil
	case api.MethodClearTag:
		var params api.ClearTagParams
		if err := tx.UnmarshalBody(&params); err != nil {
			return nil, errors.WithContext(api.ErrInvalidArgument, err.Error())
		}
		return ClearTag{Height: params.Height}, nil
	default:
		return nil, errors.WithContext(api.ErrInvalidMethod, string(tx.Method))
	}
}

// Controller applies calls to the tag store.
//
// Execute takes the current root (nil while uninitialized) and returns the
// root resulting from the call. Nodes are written to the node database,
// but committing the returned root is left to the caller.
type Controller struct {
	logger *logging.Logger

	db         storage.NodeDB
	authorizer api.Authorizer
	maxTagSize uint64
}

// Execute applies a call made by caller to the tag store with the given
// root and returns the new root. On error the returned root is nil and
// the given root remains valid.
func (c *Controller) Execute(ctx context.Context, caller api.Caller, call Call, root *hash.Hash) (*hash.Hash, error) {
	var (
		newRoot hash.Hash
		err     error
	)
	switch call := call.(type) {
	case Construct:
		newRoot, err = c.construct(ctx, caller, root)
	case EnqueueTag:
		newRoot, err = c.enqueueTag(ctx, caller, call, root)
	case ClearTag:
		newRoot, err = c.clearTag(ctx, caller, call, root)
	default:
		return nil, errors.WithContext(api.ErrInvalidMethod, fmt.Sprintf("%T", call))
	}
	if err != nil {
		return nil, err
	}

	return &newRoot, nil
}

func (c *Controller) construct(ctx context.Context, caller api.Caller, root *hash.Hash) (hash.Hash, error) {
	if !c.authorizer.IsPrivileged(caller.Address) {
		return hash.Hash{}, errors.WithContext(api.ErrForbidden, "caller is not privileged")
	}
	if root != nil {
		return hash.Hash{}, errors.WithContext(api.ErrForbidden, "already initialized")
	}

	newRoot, err := state.Initialize(ctx, c.db)
	if err != nil {
		return hash.Hash{}, err
	}

	c.logger.Info("tag store initialized",
		"root", newRoot,
	)

	return newRoot, nil
}

func (c *Controller) enqueueTag(ctx context.Context, caller api.Caller, call EnqueueTag, root *hash.Hash) (hash.Hash, error) {
	if root == nil {
		return hash.Hash{}, api.ErrNotInitialized
	}
	if c.maxTagSize > 0 && uint64(len(call.Tag)) > c.maxTagSize {
		return hash.Hash{}, errors.WithContext(api.ErrInvalidArgument,
			fmt.Sprintf("tag too large: %d > %d bytes", len(call.Tag), c.maxTagSize),
		)
	}

	height := caller.Height()
	newRoot, err := state.Insert(ctx, c.db, *root, height, call.Tag)
	if err != nil {
		return hash.Hash{}, err
	}

	c.logger.Debug("tag enqueued",
		"height", height,
		"caller", caller.Address,
		"tag_size", len(call.Tag),
	)

	return newRoot, nil
}

func (c *Controller) clearTag(ctx context.Context, caller api.Caller, call ClearTag, root *hash.Hash) (hash.Hash, error) {
	if !c.authorizer.IsPrivileged(caller.Address) {
		return hash.Hash{}, errors.WithContext(api.ErrForbidden, "caller is not privileged")
	}
	if root == nil {
		return hash.Hash{}, api.ErrNotInitialized
	}

	height := caller.Height()
	if call.Height != nil {
		height = *call.Height
	}
	newRoot, err := state.Remove(ctx, c.db, *root, height)
	if err != nil {
		return hash.Hash{}, err
	}

	c.logger.Debug("tag queue cleared",
		"height", height,
		"changed", !newRoot.Equal(root),
	)

	return newRoot, nil
}

// NewController creates a new controller over the given node database.
// A zero maxTagSize disables the tag size limit.
func NewController(db storage.NodeDB, authorizer api.Authorizer, maxTagSize uint64) *Controller {
	if authorizer == nil {
		authorizer = api.SystemAuthorizer
	}

	return &Controller{
		logger:     logging.GetLogger("cetf/controller"),
		db:         db,
		authorizer: authorizer,
		maxTagSize: maxTagSize,
	}
}
