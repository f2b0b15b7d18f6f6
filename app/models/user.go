package models

import (
	"errors"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a model does not exist.
var ErrNotFound = errors.New("model not found")

// User is an API user. Passwords never leave the process.
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`

	created bool
}

// AuthIdentifier identifies the user for rate limiting.
func (u *User) AuthIdentifier() string { return strconv.Itoa(u.ID) }

// WasRecentlyCreated reports whether the user was created by this request.
func (u *User) WasRecentlyCreated() bool { return u.created }

// AccessToken is a personal access token issued at login.
//
//	// Laravel: $user->createToken('API_TOKEN')
type AccessToken struct {
	Name   string `json:"name"`
	Token  string `json:"token"`
	UserID int    `json:"user_id"`
}

// UserStore keeps users and their access tokens in memory.
type UserStore struct {
	mu     sync.RWMutex
	nextID int
	users  []*User
	tokens map[string]AccessToken
}

// NewUserStore creates a store holding users.
func NewUserStore(users ...User) *UserStore {
	s := &UserStore{nextID: 1, tokens: make(map[string]AccessToken)}
	for _, u := range users {
		s.insert(u)
	}
	return s
}

func (s *UserStore) insert(u User) *User {
	u.ID = s.nextID
	s.nextID++
	stored := u
	s.users = append(s.users, &stored)
	return &stored
}

// All returns every user.
func (s *UserStore) All() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out
}

// Find returns the user with id.
func (s *UserStore) Find(id int) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			found := *u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// FindByEmail returns the user with email.
func (s *UserStore) FindByEmail(email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			found := *u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// Create stores a new user and marks it as recently created.
func (s *UserStore) Create(u User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := *s.insert(u)
	created.created = true
	return &created
}

// Update applies the non-empty fields of changes to the user with id.
func (s *UserStore) Update(id int, changes User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID != id {
			continue
		}
		if changes.Name != "" {
			u.Name = changes.Name
		}
		if changes.Email != "" {
			u.Email = changes.Email
		}
		if changes.Password != "" {
			u.Password = changes.Password
		}
		updated := *u
		return &updated, nil
	}
	return nil, ErrNotFound
}

// Delete removes the user with id and revokes its tokens.
func (s *UserStore) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.users, func(u *User) bool { return u.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	s.users = slices.Delete(s.users, i, i+1)
	for token, t := range s.tokens {
		if t.UserID == id {
			delete(s.tokens, token)
		}
	}
	return nil
}

// CreateToken issues a new access token for user.
func (s *UserStore) CreateToken(user *User, name string) AccessToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := AccessToken{Name: name, Token: uuid.NewString(), UserID: user.ID}
	s.tokens[t.Token] = t
	return t
}

// FindByToken returns the owner of token.
func (s *UserStore) FindByToken(token string) (*User, error) {
	s.mu.RLock()
	t, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Find(t.UserID)
}

// RevokeToken deletes token.
func (s *UserStore) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}
