package sso

import (
	"errors"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoName       = errors.New("token carries no display name")
)

// Identity exposes who is signed in, once sign-in has settled.
type Identity interface {
	// DisplayName returns the signed-in user's name, if any.
	DisplayName() (string, bool)
	// Ready is closed once sign-in has settled, signed in or not.
	Ready() <-chan struct{}
}

// Session holds the identity taken from an SSO ID token. When secret is empty
// the token is decoded without signature verification: the browser's SSO
// library has already authenticated the user and the name only pre-fills a
// form field.
type Session struct {
	secret []byte

	mu       sync.RWMutex
	name     string
	username string

	ready     chan struct{}
	readyOnce sync.Once
}

func NewSession(secret string) *Session {
	s := &Session{ready: make(chan struct{})}
	if secret != "" {
		s.secret = []byte(secret)
	}
	return s
}

// Authenticate reads the display name from an ID token and marks the session
// ready. Claims are tried in the order name, preferred_username, upn.
func (s *Session) Authenticate(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}

	username := claimString(claims, "preferred_username", "upn", "email")
	name := claimString(claims, "name", "preferred_username", "upn")
	if name == "" {
		return "", ErrNoName
	}

	s.mu.Lock()
	s.name = name
	s.username = username
	s.mu.Unlock()
	s.settle()
	return name, nil
}

// Anonymous marks sign-in as settled without a user.
func (s *Session) Anonymous() {
	s.settle()
}

// SignOut forgets the current user.
func (s *Session) SignOut() {
	s.mu.Lock()
	s.name = ""
	s.username = ""
	s.mu.Unlock()
}

func (s *Session) DisplayName() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name, s.name != ""
}

// Username is the sign-in name (UPN or email) of the current user.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Ready is closed once sign-in has settled, signed in or not.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) settle() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Session) parse(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if s.secret == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, ErrInvalidToken
		}
		return claims, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
