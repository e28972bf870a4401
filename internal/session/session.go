// Package session keeps the login state the lorebook store keys its
// persistence mode on. The token and user profile are persisted in the
// device key-value namespace so a restart keeps the user logged in.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/mrlokans/loremaster/internal/kv"
)

const (
	TokenKey = "loremaster_session_token"
	UserKey  = "loremaster_user_info"
)

// ErrEmptyToken is returned when logging in without a token.
var ErrEmptyToken = errors.New("session token is empty")

// User is the profile returned by the identity provider. Its shape is owned
// by the provider, so it is kept as a free-form document.
type User map[string]any

// Name returns the best display name the profile carries.
func (u User) Name() string {
	for _, key := range []string{"global_name", "username", "name", "id"} {
		if v, ok := u[key]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// Session is the login state. Listeners are told whenever IsLoggedIn
// changes.
type Session struct {
	store kv.Store

	mu        sync.RWMutex
	token     string
	user      User
	listeners map[int]func(bool)
	nextID    int
}

// New loads any persisted session from store.
func New(store kv.Store) (*Session, error) {
	s := &Session{store: store, listeners: make(map[int]func(bool))}

	token, _, err := store.Get(TokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}
	s.token = token

	raw, ok, err := store.Get(UserKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session user: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.user); err != nil {
			log.Printf("Session: stored user profile is not valid JSON, ignoring it: %v", err)
			s.user = nil
		}
	}

	return s, nil
}

// IsLoggedIn reports whether a token is held.
func (s *Session) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the bearer token, or "".
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the logged-in profile, or nil.
func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Login stores the token and profile and notifies listeners when the
// session changes from logged out to logged in.
func (s *Session) Login(token string, user User) error {
	if token == "" {
		return ErrEmptyToken
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}
	if err := s.store.Set(TokenKey, token); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	if err := s.store.Set(UserKey, string(userJSON)); err != nil {
		return fmt.Errorf("failed to store session user: %w", err)
	}

	s.mu.Lock()
	wasLoggedIn := s.token != ""
	s.token = token
	s.user = user
	s.mu.Unlock()

	if !wasLoggedIn {
		s.notify(true)
	}
	return nil
}

// Logout forgets the token and profile.
func (s *Session) Logout() error {
	if err := s.store.Delete(TokenKey); err != nil {
		return fmt.Errorf("failed to remove session token: %w", err)
	}
	if err := s.store.Delete(UserKey); err != nil {
		return fmt.Errorf("failed to remove session user: %w", err)
	}

	s.mu.Lock()
	wasLoggedIn := s.token != ""
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if wasLoggedIn {
		s.notify(false)
	}
	return nil
}

// Subscribe registers fn for login state changes and returns a function
// that removes it.
func (s *Session) Subscribe(fn func(loggedIn bool)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(loggedIn bool) {
	s.mu.RLock()
	listeners := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(loggedIn)
	}
}
