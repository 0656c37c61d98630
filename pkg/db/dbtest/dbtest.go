// Package dbtest opens throwaway SQLite databases carrying the service
// schema, for package tests that need real SQL.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	WebhookEventsSchema = `CREATE TABLE webhook_events (
		id BIGINT PRIMARY KEY,
		source TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		provider_event_id TEXT,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		error TEXT,
		received_at DATETIME NOT NULL,
		processed_at DATETIME
	)`
	WebhookEventsIndex = `CREATE UNIQUE INDEX ux_webhook_events_provider_event_id ON webhook_events(provider_event_id)`

	UsersSchema = `CREATE TABLE users (
		id BIGINT PRIMARY KEY,
		email TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		subscription_id TEXT UNIQUE,
		subscription_status TEXT NOT NULL DEFAULT 'FREE',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`

	AuditLogsSchema = `CREATE TABLE audit_logs (
		id BIGINT PRIMARY KEY,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT,
		ip_address TEXT,
		user_agent TEXT,
		created_at DATETIME NOT NULL
	)`
)

// Schema is every table the service owns.
var Schema = []string{
	WebhookEventsSchema,
	WebhookEventsIndex,
	UsersSchema,
	AuditLogsSchema,
}

var seq atomic.Int64

// Open returns an isolated in-memory database with the given DDL applied.
// The pool holds one connection, so concurrent transactions queue behind each
// other the way row locks would serialize them on Postgres.
func Open(t testing.TB, schema ...string) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(schema) == 0 {
		schema = Schema
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

// Count returns the number of rows in table matching where.
func Count(t testing.TB, db *gorm.DB, table, where string, args ...any) int64 {
	t.Helper()

	var count int64
	stmt := db.Table(table)
	if where != "" {
		stmt = stmt.Where(where, args...)
	}
	if err := stmt.Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
