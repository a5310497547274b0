package account

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolerbbh/bbh-server/internal/util"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	return store, path
}

func TestAuthenticateRegistersNewAccount(t *testing.T) {
	store, path := newTestStore(t)

	acc, err := store.Authenticate("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)
	assert.Equal(t, 1, acc.ID)
	assert.Equal(t, util.MD5Hex("secret"), acc.PasswordHash)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice;"+util.MD5Hex("secret")+";1\n", string(data))
}

func TestAuthenticateExistingAccount(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.Authenticate("alice", "secret")
	require.NoError(t, err)

	// Same credentials resolve to the same account, no new registration
	again, err := store.Authenticate("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, store.Count())

	_, err = store.Authenticate("alice", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestAccountIDsSurviveReload(t *testing.T) {
	store, path := newTestStore(t)

	_, err := store.Authenticate("alice", "secret")
	require.NoError(t, err)
	bob, err := store.Authenticate("bob", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, 2, bob.ID)

	reloaded, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Count())

	acc, ok := reloaded.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, 1, acc.ID)

	// New registrations continue from the highest persisted id
	carol, err := reloaded.Authenticate("carol", "pw")
	require.NoError(t, err)
	assert.Equal(t, 3, carol.ID)
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	content := "alice;" + util.MD5Hex("secret") + ";1\n" +
		"garbage line\n" +
		"bob;" + util.MD5Hex("pw") + ";notanumber\n" +
		"carol;" + util.MD5Hex("pw") + ";7\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Count())

	// Next id continues past the highest valid record
	dave, err := store.Authenticate("dave", "pw")
	require.NoError(t, err)
	assert.Equal(t, 8, dave.ID)
}
