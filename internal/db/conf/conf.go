// Package conf
package conf

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/lib/pq"
)

// AdminConnEnv overrides the connection string of the maintenance database
// used to create and drop test databases.
const AdminConnEnv = "FINANCEIQ_TEST_PG"

const defaultAdminConnStr = "host=localhost port=5432 user=postgres password=postgres dbname=postgres sslmode=disable"

// Config holds a database connection and test metadata
type Config struct {
	Name      string
	DB        *sql.DB
	ConnStr   string
	AdminDB   *sql.DB
	SchemaSQL string
}

// NewTestConfig creates a database with a random name and applies
// scripts/schema.sql. It skips the test when PostgreSQL is unreachable.
func NewTestConfig(t *testing.T) (*Config, func()) {
	t.Helper()

	adminConnStr := os.Getenv(AdminConnEnv)
	if adminConnStr == "" {
		adminConnStr = defaultAdminConnStr
	}

	adminDB, err := sql.Open("postgres", adminConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}

	if err := adminDB.Ping(); err != nil {
		adminDB.Close()
		t.Skipf("Skipping test: PostgreSQL is not running or not accessible: %v", err)
		return nil, func() {}
	}

	dbName := fmt.Sprintf("financeiq_test_%d", rand.Int31())
	if _, err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		adminDB.Close()
		t.Fatalf("Failed to create test database: %v", err)
	}

	schemaSQL, err := os.ReadFile(findSchema())
	if err != nil {
		adminDB.Close()
		t.Fatalf("Failed to read schema.sql: %v", err)
	}

	dbConnStr := replaceDBName(adminConnStr, dbName)
	db, err := sql.Open("postgres", dbConnStr)
	if err != nil {
		adminDB.Close()
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	for stmt := range strings.SplitSeq(string(schemaSQL), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			adminDB.Close()
			t.Fatalf("Failed to apply schema statement: %s\nError: %v", stmt, err)
		}
	}

	cfg := &Config{
		Name:      dbName,
		DB:        db,
		ConnStr:   dbConnStr,
		AdminDB:   adminDB,
		SchemaSQL: string(schemaSQL),
	}

	cleanup := func() {
		db.Close()
		if _, err := adminDB.Exec(fmt.Sprintf("DROP DATABASE %s WITH (FORCE)", dbName)); err != nil {
			t.Logf("Warning: Failed to drop test database %s: %v", dbName, err)
		}
		adminDB.Close()
	}

	return cfg, cleanup
}

// findSchema looks for scripts/schema.sql in the working directory and up to
// three parents.
func findSchema() string {
	path := filepath.Join("scripts", "schema.sql")
	for range 3 {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		path = filepath.Join("..", path)
	}
	return path
}

// replaceDBName swaps the dbname of a key=value connection string.
func replaceDBName(connStr, dbName string) string {
	fields := strings.Fields(connStr)
	replaced := false
	for i, f := range fields {
		if strings.HasPrefix(f, "dbname=") {
			fields[i] = "dbname=" + dbName
			replaced = true
		}
	}
	if !replaced {
		fields = append(fields, "dbname="+dbName)
	}
	return strings.Join(fields, " ")
}
