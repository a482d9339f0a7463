package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
)

// Options describes how to reach Postgres and size the connection pool.
type Options struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// URL returns the options as a postgres:// URL, the form the migrator expects.
func (o Options) URL() string {
	sslmode := o.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.User, o.Password),
		Host:     o.Host + ":" + o.Port,
		Path:     "/" + o.Name,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String()
}

// Connect opens the pool and verifies it with a ping bounded by ctx.
func Connect(ctx context.Context, o Options) (*sql.DB, error) {
	db, err := sql.Open("postgres", o.URL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if o.MaxOpenConns > 0 {
		db.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		db.SetMaxIdleConns(o.MaxIdleConns)
	}
	if o.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(o.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}
