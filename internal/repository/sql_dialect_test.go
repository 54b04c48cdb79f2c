package repository

import "testing"

func TestDBDialectNameDefaultsToSQLite(t *testing.T) {
	if got := dbDialectName(nil); got != "sqlite" {
		t.Fatalf("nil db dialect want sqlite got %s", got)
	}
	db := setupRepositoryTestDB(t)
	if got := dbDialectName(db); got != "sqlite" {
		t.Fatalf("sqlite dialect want sqlite got %s", got)
	}
	if isPostgres(db) {
		t.Fatalf("sqlite must not be treated as postgres")
	}
	if err := lockPhone(db, "09123456789"); err != nil {
		t.Fatalf("lockPhone on sqlite should be a no-op: %v", err)
	}
}
