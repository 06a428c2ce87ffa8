// Package storage implements the storage backend factory.
package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/BadBoiLabs/cetf/go/storage/api"
	"github.com/BadBoiLabs/cetf/go/storage/badger"
	"github.com/BadBoiLabs/cetf/go/storage/cache"
	"github.com/BadBoiLabs/cetf/go/storage/leveldb"
	"github.com/BadBoiLabs/cetf/go/storage/memory"
)

const (
	// CfgBackend configures the storage backend.
	CfgBackend = "storage.backend"
	// CfgMaxCacheSize configures the node cache size in bytes.
	CfgMaxCacheSize = "storage.max_cache_size"
)

// Flags has the configuration flags.
var Flags = flag.NewFlagSet("", flag.ContinueOnError)

// NewConfig builds a backend configuration from the configuration flags,
// placing any on-disk database under dataDir.
func NewConfig(dataDir string) (*api.Config, error) {
	cfg := &api.Config{
		Backend:      strings.ToLower(viper.GetString(CfgBackend)),
		MaxCacheSize: uint64(viper.GetSizeInBytes(CfgMaxCacheSize)),
	}

	switch cfg.Backend {
	case memory.BackendName:
	case badger.BackendName:
		cfg.DB = filepath.Join(dataDir, badger.DBFile)
	case leveldb.BackendName:
		cfg.DB = filepath.Join(dataDir, leveldb.DBFile)
	default:
		return nil, fmt.Errorf("storage: unsupported backend: '%v'", cfg.Backend)
	}
	if cfg.DB != "" && dataDir == "" {
		return nil, fmt.Errorf("storage: backend '%s' requires a data directory", cfg.Backend)
	}

	return cfg, nil
}

// New constructs a new Backend based on the configuration.
func New(cfg *api.Config) (api.Backend, error) {
	var (
		impl api.Backend
		err  error
	)

	switch cfg.Backend {
	case memory.BackendName:
		impl = memory.New()
	case badger.BackendName:
		impl, err = badger.New(cfg.DB)
	case leveldb.BackendName:
		impl, err = leveldb.New(cfg.DB)
	default:
		err = fmt.Errorf("storage: unsupported backend: '%v'", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxCacheSize > 0 {
		cached, cerr := cache.New(impl, cfg.MaxCacheSize)
		if cerr != nil {
			impl.Close()
			return nil, cerr
		}
		impl = cached
	}

	return newMetricsWrapper(impl), nil
}

func init() {
	Flags.String(CfgBackend, badger.BackendName, "storage backend [memory,badger,leveldb]")
	Flags.String(CfgMaxCacheSize, "16mb", "maximum node cache size (0 disables the cache)")

	_ = viper.BindPFlags(Flags)
}
