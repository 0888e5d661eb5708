package logging

import "github.com/narconet/narconet/pkg/narconet"

// Level represents a log level. Its value hierarchy is designed to be ordered
// and comparable by value.
type Level uint

const (
	// LevelDisabled indicates that logging is completely disabled.
	LevelDisabled Level = iota
	// LevelError indicates that only fatal errors are logged.
	LevelError
	// LevelWarn indicates that both fatal and non-fatal errors are logged.
	LevelWarn
	// LevelInfo indicates that basic execution information is logged (in
	// addition to all errors).
	LevelInfo
	// LevelDebug indicates that advanced execution information is logged (in
	// addition to basic information and all errors).
	LevelDebug
	// LevelTrace indicates that low-level execution information is logged (in
	// addition to all other execution information and all errors).
	LevelTrace
)

// NameToLevel converts a string-based representation of a log level to the
// appropriate Level value. It returns a boolean indicating whether or not the
// conversion was valid. If the name is invalid, LevelDisabled is returned.
func NameToLevel(name string) (Level, bool) {
	switch name {
	case "disabled":
		return LevelDisabled, true
	case "error":
		return LevelError, true
	case "warn":
		return LevelWarn, true
	case "info":
		return LevelInfo, true
	case "debug":
		return LevelDebug, true
	case "trace":
		return LevelTrace, true
	default:
		return LevelDisabled, false
	}
}

// String provides a human-readable representation of a log level.
func (l Level) String() string {
	switch l {
	case LevelDisabled:
		return "disabled"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// currentLevel is the process-wide level that every Logger's output is
// filtered through. It defaults to LevelInfo, or LevelDebug if the
// NARCONET_DEBUG environment variable requested debug logging before
// SetLevel had a chance to run.
var currentLevel = defaultLevel()

func defaultLevel() Level {
	if narconet.DebugEnabled {
		return LevelDebug
	}
	return LevelInfo
}

// SetLevel sets the process-wide logging level, filtering every Logger's
// Print/Warn/Error/Debug output against it. It is normally called once at
// startup from a command's --log-level flag.
func SetLevel(level Level) {
	currentLevel = level
}

// CurrentLevel returns the process-wide logging level.
func CurrentLevel() Level {
	return currentLevel
}
