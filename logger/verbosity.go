package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
const (
	VerbosityUser  = 0 // No flags: results and errors only
	VerbosityInfo  = 1 // -v: + ingestion progress, provider selection
	VerbosityDebug = 2 // -vv: + retry attempts, prompts, config details
	VerbosityAll   = 3 // -vvv: + full request/response bodies
)

// VerbosityToLevel maps verbosity flags (-v, -vv, etc.) to zap log levels
//
//	0 (none) -> WarnLevel
//	1 (-v)   -> InfoLevel
//	2+       -> DebugLevel
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// ShouldLogAll returns true for verbosity >= 3 (-vvv)
// Use this for dumping prompts and raw model responses
func ShouldLogAll(verbosity int) bool {
	return verbosity >= VerbosityAll
}
