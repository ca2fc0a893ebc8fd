// Package logx configures punchd's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// The Service lets the logging config be re-applied at runtime (hot reload)
// without replumbing loggers: Logger values created from the Service stay
// "live" and pick up new sinks and levels.
//
// The zero value of Logger is a safe no-op.
package logx
