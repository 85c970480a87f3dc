// Package session holds the authenticated-user state. Each login
// creates a server-side session keyed by a random session ID; the JWT
// handed to the client carries that ID, so revocation is a map delete
// rather than a token blacklist.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dealspot/dealspot-api/internal/bus"
	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var sessionTracer = otel.Tracer("session")

type entry struct {
	user      domain.User
	expiresAt time.Time
}

// Store tracks live sessions and their user snapshots. The session
// copy of the user is authoritative for the ledger and favorites while
// the session lives; writes flow back to the entity cache through
// PatchUser.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]entry

	entities  *store.Store
	bus       *bus.Bus
	jwtSecret []byte
	ttl       time.Duration
	logger    *zap.Logger
}

func NewStore(entities *store.Store, b *bus.Bus, jwtSecret string, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		sessions:  make(map[string]entry),
		entities:  entities,
		bus:       b,
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
		logger:    logger,
	}
}

// JWTClaims are the custom claims in session tokens. Sid is the
// server-side session key; Sub is the user ID.
type JWTClaims struct {
	Sid  string `json:"sid"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ============================================================
// Login — POST /v1/auth/login
// ============================================================

func (s *Store) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	_, span := sessionTracer.Start(ctx, "Session.Login")
	defer span.End()
	span.SetAttributes(attribute.String("email", req.Email))

	user, err := s.entities.UserByEmail(req.Email)
	if err != nil {
		// Same answer for unknown email and wrong password.
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login: failed password attempt", zap.String("user_id", user.ID))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	sid := uuid.NewString()

	s.mu.Lock()
	s.sessions[sid] = entry{user: *user, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	token, err := s.signToken(sid, user)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)

	return &domain.LoginResponse{
		Token:     token,
		ExpiresIn: int(s.ttl.Seconds()),
		User:      user,
	}, nil
}

// ============================================================
// Logout — POST /v1/auth/logout
// ============================================================

func (s *Store) Logout(ctx context.Context, sid string) {
	_, span := sessionTracer.Start(ctx, "Session.Logout")
	defer span.End()

	s.mu.Lock()
	e, ok := s.sessions[sid]
	delete(s.sessions, sid)
	s.mu.Unlock()

	if !ok {
		return
	}

	s.bus.Publish(bus.Event{Kind: bus.KindSession, Op: bus.OpDeleted, ID: e.user.ID})
	s.logger.Info("user logged out", zap.String("user_id", e.user.ID))
}

// ============================================================
// Session reads & writes
// ============================================================

// CurrentUser returns a copy of the session's user. Expired or unknown
// sessions read as not authenticated.
func (s *Store) CurrentUser(sid string) (*domain.User, error) {
	s.mu.RLock()
	e, ok := s.sessions[sid]
	s.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return nil, &domain.ErrNotAuthenticated{}
	}
	u := e.user
	return &u, nil
}

// UpdateUser replaces the session's user snapshot and propagates the
// change to the entity cache, which publishes the user event.
func (s *Store) UpdateUser(sid string, u *domain.User) error {
	s.mu.Lock()
	e, ok := s.sessions[sid]
	if ok {
		e.user = *u
		s.sessions[sid] = e
	}
	s.mu.Unlock()

	if !ok {
		return &domain.ErrNotAuthenticated{}
	}

	s.entities.PatchUser(u)
	return nil
}

// ============================================================
// Token validation — used by middleware
// ============================================================

// Authenticate resolves a bearer token to its session's user and
// session ID.
func (s *Store) Authenticate(tokenString string) (*domain.User, string, error) {
	claims, err := s.validateToken(tokenString)
	if err != nil {
		return nil, "", err
	}
	u, err := s.CurrentUser(claims.Sid)
	if err != nil {
		return nil, "", err
	}
	return u, claims.Sid, nil
}

func (s *Store) validateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return claims, nil
}

func (s *Store) signToken(sid string, u *domain.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Sid:  sid,
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    "dealspot-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// Purge drops expired sessions. Called periodically from main.
func (s *Store) Purge() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped int
	for sid, e := range s.sessions {
		if now.After(e.expiresAt) {
			delete(s.sessions, sid)
			dropped++
		}
	}
	return dropped
}
