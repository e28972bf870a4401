package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/loremaster/internal/kv"
)

func TestSession_LoginLogout(t *testing.T) {
	store := kv.NewMemory()
	s, err := New(store)
	require.NoError(t, err)
	assert.False(t, s.IsLoggedIn())
	assert.Nil(t, s.User())

	var events []bool
	unsubscribe := s.Subscribe(func(loggedIn bool) {
		events = append(events, loggedIn)
	})

	require.NoError(t, s.Login("tok-1", User{"username": "ada"}))
	assert.True(t, s.IsLoggedIn())
	assert.Equal(t, "tok-1", s.Token())
	assert.Equal(t, "ada", s.User().Name())

	token, ok, _ := store.Get(TokenKey)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", token)
	user, _, _ := store.Get(UserKey)
	assert.JSONEq(t, `{"username":"ada"}`, user)

	// Refreshing the token is not a state change.
	require.NoError(t, s.Login("tok-2", User{"username": "ada"}))
	assert.Equal(t, "tok-2", s.Token())

	require.NoError(t, s.Logout())
	assert.False(t, s.IsLoggedIn())
	_, ok, _ = store.Get(TokenKey)
	assert.False(t, ok)
	_, ok, _ = store.Get(UserKey)
	assert.False(t, ok)

	require.NoError(t, s.Logout())
	assert.Equal(t, []bool{true, false}, events)

	unsubscribe()
	require.NoError(t, s.Login("tok-3", nil))
	assert.Len(t, events, 2)
}

func TestSession_Restore(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set(TokenKey, "persisted"))
	require.NoError(t, store.Set(UserKey, `{"global_name":"Ada L","id":"42"}`))

	s, err := New(store)
	require.NoError(t, err)
	assert.True(t, s.IsLoggedIn())
	assert.Equal(t, "Ada L", s.User().Name())
}

func TestSession_MalformedUser(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set(TokenKey, "persisted"))
	require.NoError(t, store.Set(UserKey, `{broken`))

	s, err := New(store)
	require.NoError(t, err)
	assert.True(t, s.IsLoggedIn())
	assert.Nil(t, s.User())
}

func TestSession_EmptyToken(t *testing.T) {
	s, err := New(kv.NewMemory())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Login("", nil), ErrEmptyToken)
	assert.False(t, s.IsLoggedIn())
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, ModeLocal, ModeFor(false))
	assert.Equal(t, ModeRemote, ModeFor(true))
	assert.Equal(t, "remote", ModeRemote.String())
	assert.Equal(t, "local", ModeLocal.String())
}
