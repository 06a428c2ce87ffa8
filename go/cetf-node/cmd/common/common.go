// Package common implements common cetf-node command options and utilities.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/BadBoiLabs/cetf/go/cetf"
	"github.com/BadBoiLabs/cetf/go/common/cbor"
	"github.com/BadBoiLabs/cetf/go/common/logging"
	"github.com/BadBoiLabs/cetf/go/storage"
)

const (
	// CfgDataDir is the flag used to specify the data directory.
	CfgDataDir = "datadir"

	cfgConfigFile = "config"
)

var (
	cfgFile string

	// RootFlags has the flags that are common across all commands.
	RootFlags = flag.NewFlagSet("", flag.ContinueOnError)

	rootLog = logging.GetLogger("cetf-node")

	initOnce sync.Once
	initErr  error
)

// DataDir returns the data directory iff one is set.
func DataDir() string {
	return viper.GetString(CfgDataDir)
}

// InitConfig initializes the command configuration.
//
// WARNING: This is exposed for the benefit of tests and the interface
// is not guaranteed to be stable.
func InitConfig() {
	if cfgFile != "" {
		// Read the config file if one is provided, otherwise
		// it is assumed that the combination of default values,
		// command line flags and env vars is sufficient.
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			EarlyLogAndExit(err)
		}
	}

	// Force the DataDir to be an absolute path.
	if dataDir := DataDir(); dataDir != "" {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			EarlyLogAndExit(err)
		}
		viper.Set(CfgDataDir, abs)
	}
}

// Init initializes the common environment across all commands. Only the
// first call has any effect.
func Init() error {
	initOnce.Do(func() {
		initFns := []func() error{
			initDataDir,
			initLogging,
		}

		for _, fn := range initFns {
			if initErr = fn(); initErr != nil {
				return
			}
		}

		rootLog.Debug("common initialization complete")
	})

	return initErr
}

func initDataDir() error {
	dataDir := DataDir()
	if dataDir == "" {
		return nil
	}

	const permDir = 0o700

	fi, err := os.Lstat(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dataDir, permDir)
		}
		return err
	}

	if !fi.Mode().IsDir() {
		return fmt.Errorf("init: datadir is not a directory")
	}

	return nil
}

// EarlyLogAndExit logs the error and exits.
//
// Note: This routine should only be used prior to the logging system
// being initialized.
func EarlyLogAndExit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func normalizePath(f string) string {
	if !filepath.IsAbs(f) && DataDir() != "" {
		f = filepath.Join(DataDir(), f)
		return filepath.Clean(f)
	}
	return f
}

func init() {
	initLoggingFlags()

	RootFlags.StringVar(&cfgFile, cfgConfigFile, "", "config file")
	RootFlags.String(CfgDataDir, "", "data directory")
	_ = viper.BindPFlag(CfgDataDir, RootFlags.Lookup(CfgDataDir))

	RootFlags.AddFlagSet(loggingFlags)
	RootFlags.AddFlagSet(storage.Flags)
	RootFlags.AddFlagSet(cetf.Flags)
	RootFlags.AddFlagSet(cbor.Flags)
}
