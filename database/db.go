package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/s1v4-d/nlsql-mas/backoff"
	"github.com/s1v4-d/nlsql-mas/logging"
	"github.com/s1v4-d/nlsql-mas/periodic"
	"github.com/s1v4-d/nlsql-mas/retry"
	"github.com/s1v4-d/nlsql-mas/strcase"
	"github.com/s1v4-d/nlsql-mas/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DB is a wrapper around sqlx.DB used as the relational schema-discovery
// connector: it opens read-only connections to a user's mysql/postgres
// instance so the schema registry can introspect information_schema and,
// when a generated query targets a relational source, let the executor
// query it directly.
type DB struct {
	*sqlx.DB

	Options *Options

	addr   string
	logger *logging.Logger
}

// Options define user configurable database options.
type Options struct {
	// Maximum number of open connections to the database.
	MaxConnections int `yaml:"max_connections" env:"MAX_CONNECTIONS" default:"8"`
}

// Validate checks constraints in the supplied database options and returns an error if they are violated.
func (o *Options) Validate() error {
	if o.MaxConnections == 0 {
		return errors.New("max_connections cannot be 0. Configure a value greater than zero, or use -1 for no connection limit")
	}

	return nil
}

// RetryConnectorCallbacks are invoked at various connector retry events. See driver.RetryConnector.
type RetryConnectorCallbacks struct {
	OnInitConn InitConnFunc
	OnError    retry.OnRetryableErrorFunc
	OnSuccess  retry.OnSuccessFunc
}

// NewDbFromConfig returns a new DB from Config.
func NewDbFromConfig(c *Config, logger *logging.Logger, connectorCallbacks RetryConnectorCallbacks) (*DB, error) {
	var addr string
	var db *sqlx.DB

	newConnector := func(connector driver.Connector) *RetryConnector {
		rc := NewConnector(connector, logger, connectorCallbacks.OnInitConn)
		rc.onError = connectorCallbacks.OnError
		rc.onSuccess = connectorCallbacks.OnSuccess
		return rc
	}

	switch c.Type {
	case "mysql":
		config := mysql.NewConfig()

		config.User = c.User
		config.Passwd = c.Password
		config.Logger = mysqlLogger(func(v ...interface{}) { logger.Debug(v...) })

		if utils.IsUnixAddr(c.Host) {
			config.Net = "unix"
			config.Addr = c.Host
			addr = "(" + config.Addr + ")"
		} else {
			config.Net = "tcp"
			port := c.Port
			if port == 0 {
				port = 3306
			}
			config.Addr = net.JoinHostPort(c.Host, fmt.Sprint(port))
			addr = config.Addr
		}

		config.DBName = c.Database
		config.Timeout = time.Minute
		// Force a read-only session: the registry and executor never write through this connector.
		config.Params = map[string]string{"sql_mode": "'TRADITIONAL,ANSI_QUOTES'", "transaction_read_only": "'ON'"}

		tlsConfig, err := c.TlsOptions.MakeConfig(c.Host)
		if err != nil {
			return nil, err
		}

		config.TLS = tlsConfig

		connector, err := mysql.NewConnector(config)
		if err != nil {
			return nil, errors.Wrap(err, "can't open mysql database")
		}

		db = sqlx.NewDb(sql.OpenDB(newConnector(connector)), MySQL)
	case "pgsql":
		uri := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Path:   "/" + url.PathEscape(c.Database),
		}

		query := url.Values{
			"connect_timeout":   {"60"},
			"binary_parameters": {"yes"},
			"options":           {"-c default_transaction_read_only=on"},
			"host":              {c.Host},
		}

		port := c.Port
		if port == 0 {
			port = 5432
		}
		query.Set("port", strconv.FormatInt(int64(port), 10))

		if _, err := c.TlsOptions.MakeConfig(c.Host); err != nil {
			return nil, err
		}

		if c.TlsOptions.Enable {
			if c.TlsOptions.Insecure {
				query.Set("sslmode", "require")
			} else {
				query.Set("sslmode", "verify-full")
			}

			if c.TlsOptions.Cert != "" {
				query.Set("sslcert", c.TlsOptions.Cert)
			}

			if c.TlsOptions.Key != "" {
				query.Set("sslkey", c.TlsOptions.Key)
			}

			if c.TlsOptions.Ca != "" {
				query.Set("sslrootcert", c.TlsOptions.Ca)
			}
		} else {
			query.Set("sslmode", "disable")
		}

		uri.RawQuery = query.Encode()

		connector, err := pq.NewConnector(uri.String())
		if err != nil {
			return nil, errors.Wrap(err, "can't open pgsql database")
		}

		if utils.IsUnixAddr(c.Host) {
			addr = fmt.Sprintf("(%s/.s.PGSQL.%d)", strings.TrimRight(c.Host, "/"), port)
		} else {
			addr = utils.JoinHostPort(c.Host, port)
		}
		db = sqlx.NewDb(sql.OpenDB(newConnector(connector)), PostgreSQL)
	default:
		return nil, unknownDbType(c.Type)
	}

	if c.TlsOptions.Enable {
		addr = fmt.Sprintf("%s+tls://%s@%s/%s", c.Type, c.User, addr, c.Database)
	} else {
		addr = fmt.Sprintf("%s://%s@%s/%s", c.Type, c.User, addr, c.Database)
	}

	maxConns := c.Options.MaxConnections
	db.SetMaxIdleConns(maxConns / 3)
	db.SetMaxOpenConns(maxConns)

	db.Mapper = reflectx.NewMapperFunc("db", strcase.Snake)

	return &DB{
		DB:      db,
		Options: &c.Options,
		addr:    addr,
		logger:  logger,
	}, nil
}

// GetAddr returns a URI-like database connection string.
//
// It has the following syntax:
//
//	type[+tls]://user@host[:port]/database
func (db *DB) GetAddr() string {
	return db.addr
}

// MarshalLogObject implements [zapcore.ObjectMarshaler], adding the database address [DB.GetAddr] to each log message.
func (db *DB) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("database_address", db.GetAddr())

	return nil
}

// HasTable checks whether a table is present in the database.
//
// The first return value indicates whether a table of the given name exists. The second return value contains any
// errors that occurred during the check. If the error is not nil, the first argument is always false.
func (db *DB) HasTable(ctx context.Context, table string) (bool, error) {
	var tableSchemaFunc string
	switch db.DriverName() {
	case MySQL:
		tableSchemaFunc = "DATABASE()"
	case PostgreSQL:
		tableSchemaFunc = "CURRENT_SCHEMA()"
	default:
		return false, errors.Errorf("unsupported database driver %q", db.DriverName())
	}

	var hasTable bool
	err := retry.WithBackoff(
		ctx,
		func(ctx context.Context) error {
			query := db.Rebind("SELECT 1 FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA=" + tableSchemaFunc + " AND TABLE_NAME=?")
			rows, err := db.QueryContext(ctx, query, table)
			if err != nil {
				return CantPerformQuery(err, query)
			}
			defer func() { _ = rows.Close() }()
			hasTable = rows.Next()
			if err := rows.Close(); err != nil {
				return err
			}
			return rows.Err()
		},
		retry.Retryable,
		backoff.DefaultBackoff,
		db.GetDefaultRetrySettings())
	if err != nil {
		return false, errors.Wrapf(err, "can't verify existence of database table %q", table)
	}
	return hasTable, nil
}

func (db *DB) GetDefaultRetrySettings() retry.Settings {
	return retry.Settings{
		Timeout: retry.DefaultTimeout,
		OnRetryableError: func(elapsed time.Duration, attempt uint64, err, lastErr error) {
			db.logger.Warnw("Can't execute query. Retrying",
				zap.Error(err),
				zap.Duration("after", elapsed),
				zap.Uint64("attempt", attempt))
		},
		OnSuccess: func(elapsed time.Duration, attempt uint64, lastErr error) {
			if attempt > 1 {
				db.logger.Infow("Query retried successfully after error",
					zap.Duration("after", elapsed),
					zap.Uint64("attempts", attempt),
					zap.NamedError("recovered_error", lastErr))
			}
		},
	}
}

// Log periodically reports how long a query has been running, grounded on
// the teacher's DB.Log but without the per-row bulk counter this domain has no use for.
func (db *DB) Log(ctx context.Context, query string) periodic.Stopper {
	start := time.Now()
	return periodic.Start(ctx, db.logger.Interval(), func(tick periodic.Tick) {
		db.logger.Debugf("Still executing %q after %s", query, tick.Elapsed)
	}, periodic.OnStop(func(tick periodic.Tick) {
		db.logger.Debugf("Finished executing %q in %s", query, time.Since(start))
	}))
}

var _ driver.Connector = (*RetryConnector)(nil)
