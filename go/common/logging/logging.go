// Package logging implements support for structured, per-module logging.
//
// Loggers may be obtained at package init time. Until Initialize is called
// they write nowhere, afterwards they are attached to the configured sink.
package logging

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/pflag"
)

// callerDepth is log.DefaultCaller's depth plus the Logger wrapper frames.
const callerDepth = 5

var (
	root = &registry{
		sink:         log.NewNopLogger(),
		defaultLevel: LevelError,
	}

	_ pflag.Value = (*Level)(nil)
	_ pflag.Value = (*Format)(nil)
)

// Format is a log output format.
type Format uint

const (
	// FmtLogfmt is the "logfmt" format.
	FmtLogfmt Format = iota
	// FmtJSON is the JSON format.
	FmtJSON
)

var formatNames = map[Format]string{
	FmtLogfmt: "logfmt",
	FmtJSON:   "JSON",
}

// String returns the name of the format.
func (f *Format) String() string {
	if s, ok := formatNames[*f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", uint(*f))
}

// Set parses a format name (case-insensitive).
func (f *Format) Set(s string) error {
	for fmtv, name := range formatNames {
		if strings.EqualFold(s, name) {
			*f = fmtv
			return nil
		}
	}
	return fmt.Errorf("logging: invalid log format: '%s'", s)
}

// Type returns the list of supported formats.
func (f *Format) Type() string {
	return "[logfmt,JSON]"
}

func (f Format) newLogger(w io.Writer) (log.Logger, error) {
	switch f {
	case FmtLogfmt:
		return log.NewLogfmtLogger(w), nil
	case FmtJSON:
		return log.NewJSONLogger(w), nil
	default:
		return nil, fmt.Errorf("logging: unsupported log format: %d", uint(f))
	}
}

// Level is a log level.
type Level uint

const (
	// LevelDebug is the log level for debug messages.
	LevelDebug Level = iota
	// LevelInfo is the log level for informative messages.
	LevelInfo
	// LevelWarn is the log level for warning messages.
	LevelWarn
	// LevelError is the log level for error messages.
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns the name of the level.
func (l *Level) String() string {
	if int(*l) < len(levelNames) {
		return levelNames[*l]
	}
	return fmt.Sprintf("Level(%d)", uint(*l))
}

// Set parses a level name (case-insensitive).
func (l *Level) Set(s string) error {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			*l = Level(i)
			return nil
		}
	}
	return fmt.Errorf("logging: invalid log level: '%s'", s)
}

// Type returns the list of supported levels.
func (l *Level) Type() string {
	return "[" + strings.Join(levelNames[:], ",") + "]"
}

func (l Level) filter() level.Option {
	switch l {
	case LevelDebug:
		return level.AllowDebug()
	case LevelInfo:
		return level.AllowInfo()
	case LevelWarn:
		return level.AllowWarn()
	default:
		return level.AllowError()
	}
}

func (l Level) value() level.Value {
	switch l {
	case LevelDebug:
		return level.DebugValue()
	case LevelInfo:
		return level.InfoValue()
	case LevelWarn:
		return level.WarnValue()
	default:
		return level.ErrorValue()
	}
}

// Logger is a module logger.
type Logger struct {
	logger log.Logger
	level  Level
	module string
}

func (l *Logger) log(lvl Level, msg string, keyvals []interface{}) {
	if lvl < l.level {
		return
	}
	kv := make([]interface{}, 0, len(keyvals)+4)
	kv = append(kv, level.Key(), lvl.value(), "msg", msg)
	_ = l.logger.Log(append(kv, keyvals...)...)
}

// Debug logs at the debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.log(LevelDebug, msg, keyvals)
}

// Info logs at the info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.log(LevelInfo, msg, keyvals)
}

// Warn logs at the warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.log(LevelWarn, msg, keyvals)
}

// Error logs at the error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.log(LevelError, msg, keyvals)
}

// With returns a logger that adds the given key/value pairs to every entry.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{
		logger: log.With(l.logger, keyvals...),
		level:  l.level,
		module: l.module,
	}
}

// NewJSONLogger returns a logger writing JSON entries to w at every level,
// bypassing the module registry.
func NewJSONLogger(w io.Writer) *Logger {
	return &Logger{logger: log.NewJSONLogger(w)}
}

// GetLevel returns the default log level.
func GetLevel() Level {
	root.Lock()
	defer root.Unlock()

	return root.defaultLevel
}

// GetLogger returns a logger for the given module.
func GetLogger(module string) *Logger {
	return root.getLogger(module)
}

// Initialize attaches all module loggers to w. Modules without an entry
// in moduleLvls (matched by longest prefix) log at defaultLvl. A nil w
// discards all output. Initialize may only be called once.
func Initialize(w io.Writer, format Format, defaultLvl Level, moduleLvls map[string]Level) error {
	root.Lock()
	defer root.Unlock()

	if root.initialized {
		return fmt.Errorf("logging: already initialized")
	}

	sink := root.sink
	if w != nil {
		var err error
		if sink, err = format.newLogger(log.NewSyncWriter(w)); err != nil {
			return err
		}
	}
	sink = level.NewFilter(sink, defaultLvl.filter())
	sink = log.With(sink, "ts", log.DefaultTimestampUTC)

	root.attachLocked(sink, defaultLvl, moduleLvls)

	return nil
}

type pendingLogger struct {
	swap   *log.SwapLogger
	logger *Logger
}

type registry struct {
	sync.Mutex

	sink         log.Logger
	pending      []*pendingLogger
	defaultLevel Level

	// prefixes is reverse sorted, so a prefix comes after its extensions.
	prefixes     []string
	moduleLevels map[string]Level

	initialized bool
}

// attachLocked points the registry, and every logger handed out so far, at
// sink.
func (r *registry) attachLocked(sink log.Logger, defaultLvl Level, moduleLvls map[string]Level) {
	r.sink = sink
	r.defaultLevel = defaultLvl
	r.setModuleLevels(moduleLvls)
	r.initialized = true

	for _, p := range r.pending {
		p.swap.Swap(sink)
		p.logger.level = r.levelFor(p.logger.module)
	}
	r.pending = nil
}

func (r *registry) setModuleLevels(lvls map[string]Level) {
	r.moduleLevels = lvls
	r.prefixes = r.prefixes[:0]
	for k := range lvls {
		r.prefixes = append(r.prefixes, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(r.prefixes)))
}

func (r *registry) levelFor(module string) Level {
	for _, p := range r.prefixes {
		if strings.HasPrefix(module, p) {
			return r.moduleLevels[p]
		}
	}
	return r.defaultLevel
}

func (r *registry) getLogger(module string) *Logger {
	r.Lock()
	defer r.Unlock()

	sink := r.sink
	var swap *log.SwapLogger
	if !r.initialized {
		swap = &log.SwapLogger{}
		sink = swap
	}

	var keyvals []interface{}
	if module != "" {
		keyvals = append(keyvals, "module", module)
	}
	keyvals = append(keyvals, "caller", log.Caller(callerDepth))

	l := &Logger{
		logger: log.WithPrefix(sink, keyvals...),
		level:  r.levelFor(module),
		module: module,
	}
	if swap != nil {
		r.pending = append(r.pending, &pendingLogger{swap: swap, logger: l})
	}

	return l
}
