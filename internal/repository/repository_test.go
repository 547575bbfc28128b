package repository

import (
	"bytes"
	"context"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"megatrack/internal/model"
)

// setupKV opens a fresh database file under t.TempDir.
func setupKV(t *testing.T) *KVRepository {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewKVRepository(db)
}

func sampleTask(id, user string) model.Task {
	return model.Task{
		ID:        id,
		Month:     "Month 1",
		Week:      1,
		Day:       "Monday",
		Title:     "task " + id,
		Status:    model.StatusNotStarted,
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		UserEmail: user,
	}
}

func TestSQLiteFilePath(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{dsn: "megatrack.db", want: "megatrack.db"},
		{dsn: "data/megatrack.db", want: "data/megatrack.db"},
		{dsn: "file:data/megatrack.db?_busy_timeout=5000", want: "data/megatrack.db"},
		{dsn: ":memory:", want: ""},
		{dsn: "file:shared?mode=memory&cache=shared", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteFilePath(tt.dsn))
		})
	}
}

func TestNewDBInMemory(t *testing.T) {
	db, err := NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	kv := NewKVRepository(db)
	require.NoError(t, kv.Put(context.Background(), "k", "v"))
	got, ok, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestKVRepository(t *testing.T) {
	ctx := context.Background()
	kv := setupKV(t)

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Put(ctx, "k", "one"))
	require.NoError(t, kv.Put(ctx, "k", "two"))

	value, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", value)

	require.NoError(t, kv.Delete(ctx, "k"))
	require.NoError(t, kv.Delete(ctx, "k"), "deleting twice is fine")

	_, ok, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTaskCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewTaskCache(setupKV(t), nil)

	tasks, err := cache.Read(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	want := []model.Task{sampleTask("a", "alice@x.com"), sampleTask("b", "alice@x.com")}
	require.NoError(t, cache.Write(ctx, "alice@x.com", want))

	got, err := cache.Read(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, cache.Write(ctx, "alice@x.com", want[:1]))
	got, err = cache.Read(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, want[:1], got, "write replaces the whole partition")
}

func TestTaskCachePartitionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	cache := NewTaskCache(setupKV(t), nil)

	require.NoError(t, cache.Write(ctx, "alice@x.com", []model.Task{sampleTask("a", "alice@x.com")}))
	require.NoError(t, cache.Write(ctx, "bob@x.com", []model.Task{sampleTask("b", "bob@x.com")}))

	alice, err := cache.Read(ctx, "alice@x.com")
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Equal(t, "a", alice[0].ID)

	bob, err := cache.Read(ctx, "bob@x.com")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, "b", bob[0].ID)

	assert.NotEqual(t, PartitionKey("alice@x.com"), PartitionKey("bob@x.com"))
}

func TestTaskCacheCorruptPartitionReadsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := setupKV(t)
	var logs bytes.Buffer
	cache := NewTaskCache(kv, log.New(&logs, "", 0))

	require.NoError(t, kv.Put(ctx, PartitionKey("alice@x.com"), "{not json"))

	tasks, err := cache.Read(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Contains(t, logs.String(), "corrupt")
}

func TestTaskCacheRequiresUser(t *testing.T) {
	ctx := context.Background()
	cache := NewTaskCache(setupKV(t), nil)

	tasks, err := cache.Read(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	err = cache.Write(ctx, "", []model.Task{sampleTask("a", "")})
	assert.ErrorIs(t, err, model.ErrNoIdentity)
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	settings := NewSettingsRepository(setupKV(t))

	url, err := settings.EndpointURL(ctx)
	require.NoError(t, err)
	assert.Empty(t, url, "no endpoint means local-only mode")

	require.NoError(t, settings.SetEndpointURL(ctx, " https://script.example.com/exec "))
	url, err = settings.EndpointURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://script.example.com/exec", url)

	for _, bad := range []string{"ftp://example.com", "/relative/path", "http://", "::"} {
		assert.ErrorIs(t, settings.SetEndpointURL(ctx, bad), ErrInvalidEndpoint, bad)
	}

	require.NoError(t, settings.SetEndpointURL(ctx, ""))
	url, err = settings.EndpointURL(ctx)
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	kv := setupKV(t)
	sessions := NewSessionRepository(kv)

	user, err := sessions.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	require.NoError(t, sessions.Save(ctx, model.User{Email: " alice@x.com ", Name: "Alice"}))
	user, err = sessions.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice@x.com", user.Email)
	assert.Equal(t, "Alice", user.Name)

	assert.ErrorIs(t, sessions.Save(ctx, model.User{}), model.ErrNoIdentity)

	require.NoError(t, kv.Put(ctx, sessionKey, "garbage"))
	user, err = sessions.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, user, "a damaged session reads as signed out")

	require.NoError(t, sessions.Clear(ctx))
	user, err = sessions.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}
