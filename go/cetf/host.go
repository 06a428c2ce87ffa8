package cetf

import (
	"context"
	"sync"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/BadBoiLabs/cetf/go/cetf/api"
	"github.com/BadBoiLabs/cetf/go/cetf/state"
	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
	"github.com/BadBoiLabs/cetf/go/common/errors"
	"github.com/BadBoiLabs/cetf/go/common/logging"
	"github.com/BadBoiLabs/cetf/go/consensus/api/transaction"
	storage "github.com/BadBoiLabs/cetf/go/storage/api"
)

const (
	// CfgMaxTagSize configures the maximum accepted tag size in bytes.
	CfgMaxTagSize = "cetf.max_tag_size"

	// DefaultMaxTagSize is the default maximum tag size in bytes.
	DefaultMaxTagSize = 1024
)

// Flags has the configuration flags.
var Flags = flag.NewFlagSet("", flag.ContinueOnError)

// Host owns the committed tag store root and applies calls to it one at a
// time: load root, execute, commit root.
type Host struct {
	sync.Mutex

	logger *logging.Logger

	backend    storage.Backend
	controller *Controller
}

// Execute applies a call made by caller. The committed root is replaced
// only if the call succeeds.
func (h *Host) Execute(ctx context.Context, caller api.Caller, call Call) error {
	h.Lock()
	defer h.Unlock()

	start := time.Now()
	err := h.executeLocked(ctx, caller, call)
	observeCall(call.Method(), start, err)

	return err
}

func (h *Host) executeLocked(ctx context.Context, caller api.Caller, call Call) error {
	root, err := h.loadRootLocked(ctx)
	if err != nil {
		return err
	}

	newRoot, err := h.controller.Execute(ctx, caller, call, root)
	if err != nil {
		h.logger.Debug("call failed",
			"method", call.Method(),
			"caller", caller.Address,
			"nonce", caller.Nonce,
			"err", err,
		)
		return err
	}

	if root != nil && newRoot.Equal(root) {
		return nil
	}
	if err = h.backend.CommitRoot(ctx, *newRoot); err != nil {
		h.logger.Error("failed to commit root",
			"method", call.Method(),
			"root", *newRoot,
			"err", err,
		)
		return errors.WithContext(api.ErrStorage, err.Error())
	}

	switch call.(type) {
	case EnqueueTag:
		cetfTagsEnqueued.Inc()
	case ClearTag:
		cetfQueuesCleared.Inc()
	}

	h.logger.Debug("committed root",
		"method", call.Method(),
		"root", *newRoot,
	)

	return nil
}

// ExecuteTransaction decodes and applies a transaction sent by the given
// address. The transaction nonce is the caller's sequence number.
func (h *Host) ExecuteTransaction(ctx context.Context, from api.Address, tx *transaction.Transaction) error {
	call, err := DecodeCall(tx)
	if err != nil {
		return err
	}

	return h.Execute(ctx, api.Caller{Address: from, Nonce: tx.Nonce}, call)
}

func (h *Host) loadRootLocked(ctx context.Context) (*hash.Hash, error) {
	root, err := h.backend.LoadRoot(ctx)
	if err != nil {
		return nil, errors.WithContext(api.ErrStorage, err.Error())
	}
	return root, nil
}

// Root returns the committed root or nil if the tag store has not been
// constructed.
func (h *Host) Root(ctx context.Context) (*hash.Hash, error) {
	h.Lock()
	defer h.Unlock()

	return h.loadRootLocked(ctx)
}

// IsInitialized returns true iff the tag store has been constructed.
func (h *Host) IsInitialized(ctx context.Context) (bool, error) {
	root, err := h.Root(ctx)
	if err != nil {
		return false, err
	}
	return root != nil, nil
}

func (h *Host) readyRoot(ctx context.Context) (hash.Hash, error) {
	root, err := h.Root(ctx)
	if err != nil {
		return hash.Hash{}, err
	}
	if root == nil {
		return hash.Hash{}, api.ErrNotInitialized
	}
	return *root, nil
}

// Tags returns the queue at the given height.
func (h *Host) Tags(ctx context.Context, height api.Height) (api.TagQueue, error) {
	root, err := h.readyRoot(ctx)
	if err != nil {
		return nil, err
	}
	return state.Read(ctx, h.backend, root, height)
}

// Heights returns all populated heights in ascending order.
func (h *Host) Heights(ctx context.Context) ([]api.Height, error) {
	root, err := h.readyRoot(ctx)
	if err != nil {
		return nil, err
	}
	return state.Heights(ctx, h.backend, root)
}

// Config is the host configuration.
type Config struct {
	// Authorizer decides which callers are privileged. Defaults to
	// api.SystemAuthorizer.
	Authorizer api.Authorizer

	// MaxTagSize is the maximum accepted tag size in bytes. Zero disables
	// the limit.
	MaxTagSize uint64
}

// NewConfig builds a host configuration from the configuration flags.
func NewConfig() *Config {
	return &Config{
		Authorizer: api.SystemAuthorizer,
		MaxTagSize: viper.GetUint64(CfgMaxTagSize),
	}
}

// NewHost creates a new host over the given storage backend. The host
// does not take ownership of the backend.
func NewHost(backend storage.Backend, cfg *Config) *Host {
	initMetrics()

	return &Host{
		logger:     logging.GetLogger("cetf/host"),
		backend:    backend,
		controller: NewController(backend, cfg.Authorizer, cfg.MaxTagSize),
	}
}

func init() {
	Flags.Uint64(CfgMaxTagSize, DefaultMaxTagSize, "maximum tag size in bytes (0 disables the limit)")

	_ = viper.BindPFlags(Flags)
}
