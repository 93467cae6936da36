package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argoproj-labs/appset-gate/src/domain"
)

var testKey = domain.BranchKey{
	ApplicationSetName: "test-appset",
	Organization:       "acme",
	Repository:         "widgets",
	Branch:             "main",
}

func testRecord(sha string) domain.KnownGoodRecord {
	return domain.KnownGoodRecord{
		Sha:         sha,
		Fingerprint: sha + "+build",
		RecordedAt:  time.Now().UTC().Truncate(time.Second),
		Parameters:  map[string]string{"sha": sha, "branch": "main"},
	}
}

func TestFileStateRepositorySurvivesReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// given
	repository, err := NewFileStateRepository(dir, false)
	require.NoError(t, err)
	record := testRecord("de5e62e")

	// when
	require.NoError(t, repository.Save(context.Background(), testKey, record))
	reopened, err := NewFileStateRepository(dir, false)
	require.NoError(t, err)

	// then
	got, err := reopened.GetByKey(context.Background(), testKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record, *got)
}

func TestFileStateRepositoryAbsentKey(t *testing.T) {
	t.Parallel()

	repository, err := NewFileStateRepository(t.TempDir(), false)
	require.NoError(t, err)

	got, err := repository.GetByKey(context.Background(), testKey)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStateRepositoryOverwrite(t *testing.T) {
	t.Parallel()

	repository, err := NewFileStateRepository(t.TempDir(), false)
	require.NoError(t, err)

	require.NoError(t, repository.Save(context.Background(), testKey, testRecord("old")))
	require.NoError(t, repository.Save(context.Background(), testKey, testRecord("new")))

	got, err := repository.GetByKey(context.Background(), testKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.Sha)
}

func TestFileStateRepositoryKeysAreIndependent(t *testing.T) {
	t.Parallel()

	repository, err := NewFileStateRepository(t.TempDir(), false)
	require.NoError(t, err)

	otherKey := testKey
	otherKey.Branch = "develop"

	require.NoError(t, repository.Save(context.Background(), testKey, testRecord("main-sha")))
	require.NoError(t, repository.Save(context.Background(), otherKey, testRecord("develop-sha")))

	got, err := repository.GetByKey(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "main-sha", got.Sha)

	got, err = repository.GetByKey(context.Background(), otherKey)
	require.NoError(t, err)
	assert.Equal(t, "develop-sha", got.Sha)
}

func TestFileStateRepositoryKeysWithSpecialRunesAreIndependent(t *testing.T) {
	t.Parallel()

	repository, err := NewFileStateRepository(t.TempDir(), false)
	require.NoError(t, err)

	// Branch names that only differ in runes unsafe for filenames must not
	// end up in the same file.
	slashKey := testKey
	slashKey.Branch = "feat/x"
	underscoreKey := testKey
	underscoreKey.Branch = "feat_x"

	require.NoError(t, repository.Save(context.Background(), slashKey, testRecord("slash-sha")))
	require.NoError(t, repository.Save(context.Background(), underscoreKey, testRecord("underscore-sha")))

	got, err := repository.GetByKey(context.Background(), slashKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "slash-sha", got.Sha)

	got, err = repository.GetByKey(context.Background(), underscoreKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "underscore-sha", got.Sha)
}

func TestFileStateRepositoryMissingDir(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "state")

	_, err := NewFileStateRepository(dir, false)
	assert.Error(t, err)

	_, err = NewFileStateRepository(dir, true)
	assert.NoError(t, err)
}

func TestFileStateRepositoryCorruptFileIsFatal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// A corrupt record must never be read as "no known-good commit".
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-appset.acme.widgets.main.json"), []byte("{oops"), 0o644))

	_, err := NewFileStateRepository(dir, false)
	assert.ErrorContains(t, err, "corrupt")
}

func TestFileStateRepositoryOperatorSeededRecord(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	repository, err := NewFileStateRepository(dir, false)
	require.NoError(t, err)

	// An operator can seed a record by dropping a JSON file into the
	// state directory.
	seeded := `{"sha": "abc123", "fingerprint": "", "recorded_at": "2023-01-01T00:00:00Z", "parameters": {"sha": "abc123", "branch": "main"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-appset.acme.widgets.main.json"), []byte(seeded), 0o644))

	got, err := repository.GetByKey(context.Background(), testKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc123", got.Sha)
	assert.Equal(t, map[string]string{"sha": "abc123", "branch": "main"}, got.Parameters)
}
