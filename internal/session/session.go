package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fieldreport/internal/backend"
	"fieldreport/internal/model"
	"fieldreport/internal/prefs"
)

var ErrInvalidCredentials = errors.New("username and password are required")

// Manager tracks at most one logical session per process. The first-ever
// successful login locks its credentials in as the primary account; later
// logins compare against that record and can never overwrite it.
type Manager struct {
	mu      sync.Mutex
	kv      prefs.KV
	records backend.Store
	current *model.Session
}

func NewManager(kv prefs.KV, records backend.Store) *Manager {
	return &Manager{kv: kv, records: records}
}

// Login replaces any existing session. Credentials are appended to the login
// audit collection best-effort; an audit failure never fails the login.
func (m *Manager) Login(username, secret string) (model.Session, error) {
	if username == "" || secret == "" {
		return model.Session{}, ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	firstUser, userOK, err := m.kv.Get(prefs.KeyFirstUsername)
	if err != nil {
		return model.Session{}, fmt.Errorf("read primary account: %w", err)
	}
	firstPass, passOK, err := m.kv.Get(prefs.KeyFirstPassword)
	if err != nil {
		return model.Session{}, fmt.Errorf("read primary account: %w", err)
	}
	if !userOK || !passOK {
		// Write-once: this login becomes the primary account. A half-written
		// record (one key persisted, the other write failed) counts as absent
		// so the installation is not left without a reachable primary.
		if err := m.kv.Set(prefs.KeyFirstUsername, username); err != nil {
			return model.Session{}, fmt.Errorf("persist primary account: %w", err)
		}
		if err := m.kv.Set(prefs.KeyFirstPassword, secret); err != nil {
			return model.Session{}, fmt.Errorf("persist primary account: %w", err)
		}
		firstUser, firstPass = username, secret
	}

	sess := model.Session{
		Username:  username,
		Secret:    secret,
		IsPrimary: username == firstUser && secret == firstPass,
	}
	m.current = &sess

	go m.audit(username, secret)
	return sess, nil
}

func (m *Manager) audit(username, secret string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := m.records.Append(ctx, backend.CollectionLogins, backend.Document{
		"username": username,
		"password": secret,
	})
	if err != nil {
		log.Printf("login audit append failed: %v", err)
	}
}

// Logout clears the session only; the primary-account record persists.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

// ResetPrimaryAccount deletes the primary-account record and forces the
// current session (if any) to non-primary. IsPrimary is otherwise only
// computed at login, so a session logged in before the reset keeps whatever
// the next login computes, not a live re-evaluation.
func (m *Manager) ResetPrimaryAccount() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.kv.Delete(prefs.KeyFirstUsername); err != nil {
		return fmt.Errorf("clear primary account: %w", err)
	}
	if err := m.kv.Delete(prefs.KeyFirstPassword); err != nil {
		return fmt.Errorf("clear primary account: %w", err)
	}
	if m.current != nil {
		m.current.IsPrimary = false
	}
	return nil
}

// Current returns a snapshot of the active session.
func (m *Manager) Current() (model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return model.Session{}, false
	}
	return *m.current, true
}
