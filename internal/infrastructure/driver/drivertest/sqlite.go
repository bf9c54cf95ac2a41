// Package drivertest provides a throwaway database for package tests.
// It imports testing and is only meant for _test.go files, never for cmd or service code.
package drivertest

import (
	"context"
	"testing"

	"github.com/pot-code/microcourse/internal/infrastructure/driver"
	"github.com/pot-code/microcourse/internal/infrastructure/logging"
	"go.uber.org/zap/zaptest"
)

// NewSQLite opens an in-memory sqlite database with the schema applied,
// it is closed when the test finishes
func NewSQLite(t testing.TB) driver.ITransactionalDB {
	t.Helper()

	conn, err := driver.NewSQLiteConn(":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %s", err)
	}
	t.Cleanup(func() {
		conn.Close(context.Background())
	})
	if err := driver.EnsureSchema(context.Background(), conn); err != nil {
		t.Fatalf("failed to create schema: %s", err)
	}
	return conn
}

// Context returns a context carrying a test logger
func Context(t testing.TB) context.Context {
	return logging.SetLoggerInContext(context.Background(), zaptest.NewLogger(t))
}
