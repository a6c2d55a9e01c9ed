package conn

import (
	"tradesim/pkg/exception"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}

func (opt Option) sqliteDSN() (string, error) {
	if opt.ConnString != "" {
		return opt.ConnString, nil
	}
	if opt.Path == "" {
		return "", exception.ErrEmptyDSN
	}
	return opt.Path, nil
}
