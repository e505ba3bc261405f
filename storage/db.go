package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"houtveilig/config"

	"github.com/apex/log"
	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured durable store and makes sure its schema
// exists.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, *SQLKV, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)
	switch cfg.StoreDriver {
	case "mysql":
		dialect = DialectMySQL
		db, err = connectMySQL(ctx, cfg)
	default:
		dialect = DialectSQLite
		db, err = connectSQLite(cfg)
	}
	if err != nil {
		return nil, nil, err
	}

	kv := NewSQLKV(db, dialect, int64(cfg.StoreQuotaBytes))
	if err := kv.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, kv, nil
}

func connectSQLite(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", cfg.SQLitePath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// one writer keeps sqlite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)
	log.Infof("Using sqlite store at %s", cfg.SQLitePath)
	return db, nil
}

func mysqlDSN(cfg *config.Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	return mc.FormatDSN()
}

func connectMySQL(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", mysqlDSN(cfg))
	if err != nil {
		log.Errorf("Failed to connect to the database: %v", err)
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	deadline := time.Now().Add(60 * time.Second)
	waitInterval := time.Second
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		pingErr := db.PingContext(pingCtx)
		cancel()
		if pingErr == nil {
			break
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			db.Close()
			return nil, fmt.Errorf("database ping timeout: %w", pingErr)
		}
		log.Warnf("Database connection failed, retrying in %v: %v", waitInterval, pingErr)
		time.Sleep(waitInterval)
		waitInterval *= 2
		if waitInterval > 30*time.Second {
			waitInterval = 30 * time.Second
		}
	}

	log.Infof("Established db connection to %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
	return db, nil
}
