package querier

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/gigapi/gigapi-lakehouse/config"
	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/sqlbuild"
	_ "github.com/marcboeker/go-duckdb/v2"
)

// secretName is the DuckDB secret holding the warehouse credentials.
const secretName = "lakehouse_s3"

// Connection lazily opens one in-memory DuckDB database configured to read
// the warehouse, and hands the same handle to every caller.
type Connection struct {
	Settings config.Settings

	mu sync.Mutex
	db *sql.DB
}

func NewConnection(s config.Settings) *Connection {
	return &Connection{Settings: s}
}

// Connect returns the cached handle, creating it on first use. A failed setup
// leaves nothing cached, so the next call starts over.
func (c *Connection) Connect(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db, nil
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, &core.ConnectionError{Endpoint: c.Settings.Endpoint, Err: fmt.Errorf("failed to initialize DuckDB: %w", err)}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &core.ConnectionError{Endpoint: c.Settings.Endpoint, Err: err}
	}

	if c.Settings.UsesS3() {
		stmts, err := c.setupStatements()
		if err != nil {
			db.Close()
			return nil, &core.ConnectionError{Endpoint: c.Settings.Endpoint, Err: err}
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				db.Close()
				// stmt carries the secret; keep it out of the error
				return nil, &core.ConnectionError{Endpoint: c.Settings.Endpoint, Err: fmt.Errorf("configure httpfs: %w", err)}
			}
		}
		core.Infof(ctx, "DuckDB configured for S3 endpoint %s (region %s)", c.endpointHost(), c.Settings.Region)
	} else {
		core.Infof(ctx, "DuckDB opened for local warehouse %s", c.Settings.WarehouseURI())
	}

	c.db = db
	return db, nil
}

func (c *Connection) endpointHost() string {
	if h := c.Settings.EndpointHost(); h != "" {
		return h
	}
	return "s3." + c.Settings.Region + ".amazonaws.com"
}

func (c *Connection) setupStatements() ([]string, error) {
	secret, err := sqlbuild.CreateS3Secret(secretName,
		c.Settings.AccessKey,
		c.Settings.SecretKey,
		c.endpointHost(),
		c.Settings.Region,
		c.Settings.UseSSL(),
	)
	if err != nil {
		return nil, err
	}
	return []string{"INSTALL httpfs", "LOAD httpfs", secret}, nil
}

// Close tears down the handle. A later Connect opens a fresh one.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
