package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midjourney_bot/databases/sqlite"
	"midjourney_bot/entities"
	"midjourney_bot/generation_store"
	"midjourney_bot/repositories"
	"midjourney_bot/repositories/generations"
	"midjourney_bot/repositories/preferences"
)

var validPrefs = entities.Preferences{
	SessionToken: strings.Repeat("t", 72),
	ServerID:     "123456789012345678",
	ChannelID:    "876543210987654321",
}

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"MJ_SESSION_TOKEN", "MJ_SERVER_ID", "MJ_CHANNEL_ID", "MJ_BRIDGE_HOST",
		"MJ_POLL_INTERVAL", "MJ_HTTP_TIMEOUT", "MJ_DB_PATH", "MJ_CONFIG",
		"DISCORD_BOT_TOKEN", "DISCORD_GUILD_ID",
		"LOG_LEVEL", "LOG_FILE", "LOG_DEVELOPMENT",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, dir string, prefs entities.Preferences) string {
	t.Helper()

	content := fmt.Sprintf(`
preferences:
  session_token: %q
  server_id: %q
  channel_id: %q
database:
  path: %q
log:
  level: error
`, prefs.SessionToken, prefs.ServerID, prefs.ChannelID, filepath.Join(dir, "test.sqlite"))

	path := filepath.Join(dir, fmt.Sprintf("config-%d.yaml", len(prefs.SessionToken)))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestResolvePreferences(t *testing.T) {
	ctx := context.Background()

	db, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "prefs.sqlite"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := preferences.NewRepository(&preferences.Config{DB: db})
	require.NoError(t, err)

	prefs, err := resolvePreferences(ctx, entities.Preferences{}, repo)
	require.NoError(t, err)
	assert.True(t, prefs.IsEmpty())

	_, err = repo.Upsert(ctx, preferences.DefaultProfile, &validPrefs)
	require.NoError(t, err)

	prefs, err = resolvePreferences(ctx, entities.Preferences{}, repo)
	require.NoError(t, err)
	assert.Equal(t, validPrefs, prefs)

	configured := entities.Preferences{SessionToken: "configured"}

	prefs, err = resolvePreferences(ctx, configured, repo)
	require.NoError(t, err)
	assert.Equal(t, configured, prefs)
}

func TestValidateCommand(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()

	invalid := writeConfig(t, dir, entities.Preferences{SessionToken: "short", ServerID: "123"})
	err := Run(context.Background(), []string{"midjourney_bot", "validate", "--config", invalid})
	require.NotNil(t, err)
	assert.Equal(t, 1, err.Code)
	assert.Contains(t, err.Message, "invalid preferences")

	valid := writeConfig(t, dir, validPrefs)
	assert.Nil(t, Run(context.Background(), []string{"midjourney_bot", "validate", "--config", valid}))
}

func TestSavedPreferencesAreUsedAsFallback(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()

	withPrefs := writeConfig(t, dir, validPrefs)
	require.Nil(t, Run(context.Background(), []string{"midjourney_bot", "preferences", "save", "--config", withPrefs}))

	withoutPrefs := writeConfig(t, dir, entities.Preferences{})
	assert.Nil(t, Run(context.Background(), []string{"midjourney_bot", "validate", "--config", withoutPrefs}))
}

func TestHistoryRemoveUnknown(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, t.TempDir(), validPrefs)

	err := Run(context.Background(), []string{"midjourney_bot", "history", "remove", "--config", path, "missing-guid"})
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "unknown generation")
}

func seedGenerations(t *testing.T, dir string, gens ...entities.Generation) {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.New(ctx, filepath.Join(dir, "test.sqlite"), nil)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo, err := generations.NewRepository(&generations.Config{DB: db})
	require.NoError(t, err)

	for i := range gens {
		_, err = repo.Upsert(ctx, &gens[i])
		require.NoError(t, err)
	}
}

func withHistoryLimit(t *testing.T, limit int) {
	t.Helper()

	previous := historyLimit
	historyLimit = limit
	t.Cleanup(func() { historyLimit = previous })
}

func TestRecordsOutsideLoadedHistoryAreReachable(t *testing.T) {
	clearEnv(t)
	withHistoryLimit(t, 1)

	dir := t.TempDir()
	path := writeConfig(t, dir, validPrefs)
	now := time.Now().UTC().Truncate(time.Second)

	seedGenerations(t, dir,
		entities.Generation{GUID: "old", Prompt: "old cat", Type: entities.GenerationTypeImage,
			Command: entities.CommandImagine, Status: entities.StatusCompleted, ID: "task-old",
			Progress: "100%", CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour)},
		entities.Generation{GUID: "recent", Prompt: "recent cat", Type: entities.GenerationTypeImage,
			Command: entities.CommandImagine, Status: entities.StatusCompleted, ID: "task-recent",
			Progress: "100%", CreatedAt: now, UpdatedAt: now},
	)

	ctx := context.Background()

	a, err := newApp(ctx, path)
	require.NoError(t, err)

	_, err = a.store.Get("old")
	require.Error(t, err)

	gen, err := a.findGeneration(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "old cat", gen.Prompt)
	assert.Equal(t, "task-old", gen.ID)

	_, err = a.findGeneration(ctx, "never-existed")
	require.Error(t, err)
	a.close()

	require.Nil(t, Run(ctx, []string{"midjourney_bot", "history", "remove", "--config", path, "old"}))

	a, err = newApp(ctx, path)
	require.NoError(t, err)
	defer a.close()

	_, err = a.generationRepo.GetByGUID(ctx, "old")
	assert.True(t, repositories.IsNotFound(err))

	_, err = a.generationRepo.GetByGUID(ctx, "recent")
	assert.NoError(t, err)
}

func TestUnfinishedRecordsAreFailedOnLoad(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := writeConfig(t, dir, validPrefs)
	now := time.Now().UTC().Truncate(time.Second)

	seedGenerations(t, dir, entities.Generation{GUID: "running", Prompt: "cat",
		Type: entities.GenerationTypeImage, Command: entities.CommandImagine,
		Status: entities.StatusCreated, Progress: "40%", CreatedAt: now, UpdatedAt: now})

	ctx := context.Background()

	a, err := newApp(ctx, path)
	require.NoError(t, err)
	defer a.close()

	gen, err := a.store.Get("running")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusFailed, gen.Status)

	stored, err := a.generationRepo.GetByGUID(ctx, "running")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusFailed, stored.Status)
	assert.Equal(t, generation_store.InterruptedMessage, stored.Error)
}

func TestDerivedCommandsNeedArguments(t *testing.T) {
	clearEnv(t)

	err := Run(context.Background(), []string{"midjourney_bot", "variation", "some-guid"})
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "usage: <guid> <1-4>")

	err = Run(context.Background(), []string{"midjourney_bot", "upscale", "some-guid", "two"})
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "invalid target")

	err = Run(context.Background(), []string{"midjourney_bot", "vary"})
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "generation GUID is required")
}

func TestPrintGeneration(t *testing.T) {
	var buf bytes.Buffer

	printGeneration(&buf, entities.Generation{
		GUID:       "g2",
		ParentGUID: "g1",
		ID:         "msg-2",
		Hash:       "hash-2",
		Prompt:     "a cat",
		Command:    entities.CommandUpscale,
		Type:       entities.GenerationTypeUpscale,
		Status:     entities.StatusCompleted,
		Progress:   "done",
		URI:        "https://cdn.example/u.png",
		Options:    []entities.ActionOption{{Label: entities.OptionCustomZoom, CustomID: "zoom"}},
	})

	out := buf.String()
	assert.Contains(t, out, "g2")
	assert.Contains(t, out, "upscale/upscale")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "prompt: a cat")
	assert.Contains(t, out, "parent: g1")
	assert.Contains(t, out, "https://cdn.example/u.png")
	assert.Contains(t, out, "message msg-2, hash hash-2")
	assert.Contains(t, out, "option: Custom Zoom")
}
