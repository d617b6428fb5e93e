package session

import (
	"context"
	"os"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T, ttl time.Duration) *SQLStore {
	t.Helper()
	store, err := OpenSQLite(t.TempDir(), ttl)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := openTestSQLite(t, time.Hour)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	rec := &Record{
		AccessToken:    "tok",
		TokenExpiresAt: expires,
		RefreshToken:   "refresh",
		User:           &Identity{ID: "u1", DisplayName: "Ada", Email: "ada@example.com", Username: "ada"},
		EmbeddedMode:   true,
	}
	if err := store.Put(ctx, "sid", rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "sid")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.AccessToken != "tok" || got.RefreshToken != "refresh" || !got.EmbeddedMode {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.TokenExpiresAt.Equal(expires) {
		t.Errorf("TokenExpiresAt = %v, want %v", got.TokenExpiresAt, expires)
	}
	if got.User == nil || got.User.Email != "ada@example.com" {
		t.Errorf("unexpected identity: %+v", got.User)
	}
}

func TestSQLiteStoreReplaceAndDelete(t *testing.T) {
	store := openTestSQLite(t, time.Hour)
	ctx := context.Background()

	store.Put(ctx, "sid", &Record{OAuthState: "pending"})
	store.Put(ctx, "sid", &Record{AccessToken: "tok"})

	got, _ := store.Get(ctx, "sid")
	if got.OAuthState != "" || got.AccessToken != "tok" {
		t.Fatalf("expected replaced record, got %+v", got)
	}

	if n, _ := store.Count(ctx); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}

	if err := store.Delete(ctx, "sid"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := store.Get(ctx, "sid"); got != nil {
		t.Fatal("expected nil after delete")
	}
}

func TestSQLiteStoreExpiredRows(t *testing.T) {
	store := openTestSQLite(t, -time.Second)
	ctx := context.Background()

	store.Put(ctx, "old", &Record{AccessToken: "tok"})

	if got, _ := store.Get(ctx, "old"); got != nil {
		t.Fatal("expected expired row to be hidden")
	}

	store.Put(ctx, "old2", &Record{AccessToken: "tok"})
	removed, err := store.CleanExpired(ctx)
	if err != nil {
		t.Fatalf("CleanExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
}

func TestSQLiteStoreMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	first, err := OpenSQLite(dir, time.Hour)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	first.Put(context.Background(), "sid", &Record{AccessToken: "tok"})
	first.Close()

	second, err := OpenSQLite(dir, time.Hour)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()

	got, _ := second.Get(context.Background(), "sid")
	if got == nil || got.AccessToken != "tok" {
		t.Fatal("expected record to survive reopen")
	}
}

// TestPostgresStoreRoundTrip runs against a real server when
// PROMPTSTUDIO_TEST_POSTGRES_DSN is set.
func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("PROMPTSTUDIO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PROMPTSTUDIO_TEST_POSTGRES_DSN not set")
	}

	store, err := OpenPostgres(dsn, time.Hour)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	id, err := NewID()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Delete(ctx, id) })

	if err := store.Put(ctx, id, &Record{AccessToken: "tok", IsAdminLocal: true}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.AccessToken != "tok" || !got.IsAdminLocal {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := store.Get(ctx, id); got != nil {
		t.Fatalf("expected record deleted, got %+v", got)
	}
}
