package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/rota/internal/database"
	"github.com/dukerupert/rota/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestGroup(t *testing.T, gs *GroupStore) *model.Group {
	t.Helper()
	g, err := gs.Create("Flat 4B", model.Member{ID: "u1", DisplayName: "Ada"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return g
}
