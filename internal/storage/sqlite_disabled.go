//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"

	logx "punchd/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	return nil, errors.New("sqlite storage not built in (rebuild with -tags sqlite)")
}
