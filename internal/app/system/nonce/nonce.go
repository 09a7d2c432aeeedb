// Package nonce mints and verifies one-time authorization values for admin
// actions. A value binds an action name to the caller's session and expires
// after a configurable lifetime.
package nonce

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

// DefaultTTL is how long a minted value stays valid.
const DefaultTTL = 24 * time.Hour

const codecName = "pilitosync-nonce"

var (
	ErrMissing      = errors.New("nonce: missing")
	ErrInvalid      = errors.New("nonce: invalid")
	ErrExpired      = errors.New("nonce: expired")
	ErrWrongAction  = errors.New("nonce: issued for another action")
	ErrWrongSession = errors.New("nonce: issued for another session")
)

type payload struct {
	Action  string `json:"a"`
	Session string `json:"s"`
	Issued  int64  `json:"t"`
}

// Manager creates and checks values. It is safe for concurrent use.
type Manager struct {
	codec *securecookie.SecureCookie
	ttl   time.Duration
	now   func() time.Time
}

// New derives signing and encryption keys from secret.
func New(secret string, ttl time.Duration) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("nonce: secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	hashKey, err := deriveKey(secret, "hash", 32)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(secret, "block", 32)
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	// Expiry is checked against the payload so it can be told apart from tampering.
	codec.MaxAge(0)

	return &Manager{codec: codec, ttl: ttl, now: time.Now}, nil
}

func deriveKey(secret, purpose string, size int) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), []byte(codecName), []byte(purpose))
	key := make([]byte, size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("nonce: derive %s key: %w", purpose, err)
	}
	return key, nil
}

// TTL returns the lifetime of minted values.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create mints a value for action bound to sessionID.
func (m *Manager) Create(action, sessionID string) (string, error) {
	p := payload{Action: action, Session: sessionID, Issued: m.now().Unix()}
	token, err := m.codec.Encode(codecName, p)
	if err != nil {
		return "", fmt.Errorf("nonce: encode: %w", err)
	}
	return token, nil
}

// Verify checks that token was minted by this Manager for action and
// sessionID and has not expired.
func (m *Manager) Verify(token, action, sessionID string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissing
	}

	var p payload
	if err := m.codec.Decode(codecName, token, &p); err != nil {
		return ErrInvalid
	}

	issued := time.Unix(p.Issued, 0)
	now := m.now()
	if issued.After(now.Add(time.Minute)) || now.Sub(issued) > m.ttl {
		return ErrExpired
	}
	if p.Action != action {
		return ErrWrongAction
	}
	if p.Session != sessionID {
		return ErrWrongSession
	}
	return nil
}
