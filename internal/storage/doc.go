package storage

// Package storage provides the optional outcome history layer.
//
// It currently supports:
//   - file: append-only JSON Lines, no dependencies
//   - sqlite: SQLite database file, enabled with the `sqlite` build tag
//
// The scheduler never reads from storage; history exists for operators.
