package preferences

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midjourney_bot/databases/sqlite"
	"midjourney_bot/entities"
	"midjourney_bot/repositories"
)

func newTestRepo(t *testing.T) Repository {
	t.Helper()

	db, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "prefs.sqlite"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewRepository(&Config{DB: db})
	require.NoError(t, err)

	return repo
}

func TestNewRepositoryRequiresDB(t *testing.T) {
	_, err := NewRepository(&Config{})
	assert.Error(t, err)
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	saved, err := repo.Upsert(ctx, "", &entities.Preferences{
		SessionToken: " token ",
		ServerID:     "12345678901234567",
		ChannelID:    "76543210987654321 ",
	})
	require.NoError(t, err)
	assert.Equal(t, "token", saved.SessionToken)

	loaded, err := repo.GetByProfile(ctx, DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, entities.Preferences{SessionToken: "token", ServerID: "12345678901234567", ChannelID: "76543210987654321"}, *loaded)

	_, err = repo.Upsert(ctx, DefaultProfile, &entities.Preferences{SessionToken: "other", ServerID: "1", ChannelID: "2"})
	require.NoError(t, err)

	loaded, err = repo.GetByProfile(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "other", loaded.SessionToken)
}

func TestGetMissingProfile(t *testing.T) {
	_, err := newTestRepo(t).GetByProfile(context.Background(), "work")
	assert.ErrorIs(t, err, &repositories.NotFoundError{})
}
