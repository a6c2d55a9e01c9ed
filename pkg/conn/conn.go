package conn

import (
	"strings"
	"time"

	"tradesim/pkg/exception"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Driver names a supported database backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Option defines connection options. Driver defaults to postgres.
type Option struct {
	Driver Driver

	// postgres
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Params   map[string]string

	// sqlite file path, ":memory:" for an in-memory database
	Path string

	// ConnString overrides every driver specific field.
	ConnString string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	Config *gorm.Config
}

// Client wraps a gorm connection pool.
type Client struct {
	opt Option
	db  *gorm.DB
}

// New opens a client for the option's driver.
func New(option Option) (*Client, error) {
	dialector, err := option.dialector()
	if err != nil {
		return nil, err
	}

	config := option.Config
	if config == nil {
		config = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", option.driver())
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql db")
	}
	if option.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(option.MaxOpenConns)
	}
	if option.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(option.MaxIdleConns)
	}
	if option.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(option.ConnMaxLifetime)
	}

	return &Client{opt: option, db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Driver returns the backend the client was opened with.
func (c *Client) Driver() Driver {
	if c == nil {
		return ""
	}
	return c.opt.driver()
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt Option) driver() Driver {
	d := Driver(strings.ToLower(string(opt.Driver)))
	switch d {
	case "", "postgresql":
		return DriverPostgres
	case "sqlite3":
		return DriverSQLite
	default:
		return d
	}
}

func (opt Option) dialector() (gorm.Dialector, error) {
	switch opt.driver() {
	case DriverPostgres:
		dsn, err := opt.postgresDSN()
		if err != nil {
			return nil, err
		}
		return openPostgres(dsn), nil
	case DriverSQLite:
		dsn, err := opt.sqliteDSN()
		if err != nil {
			return nil, err
		}
		return openSQLite(dsn), nil
	default:
		return nil, errors.Wrapf(exception.ErrUnsupportedDriver, "driver: %s", opt.Driver)
	}
}
