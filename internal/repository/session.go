package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/loqui-chat/loqui/pkg/errors"
)

// SessionRepository resolves handshake tokens to identities. It implements
// the relay's Authorizer contract. Database calls are wrapped in a circuit
// breaker so handshakes fail fast while the store is down.
type SessionRepository struct {
	db      *sql.DB
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

type session struct {
	identity  string
	expiresAt time.Time
}

// NewSessionRepository creates a session repository over an open database
// handle.
func NewSessionRepository(db *sql.DB, log *zap.Logger) *SessionRepository {
	log = log.With(zap.String("module", "session"))
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "session-authorize",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing session is an authorization failure, not a store fault.
		IsSuccessful: func(err error) bool {
			return err == nil || stderrors.Is(err, sql.ErrNoRows)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &SessionRepository{db: db, breaker: breaker, log: log}
}

// Authorize validates a handshake token. Token errors follow the shared
// taxonomy: malformed tokens never reach the database; unknown tokens map to
// token-not-found; an expiry stamp in the past maps to token-expired.
func (r *SessionRepository) Authorize(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errors.ErrTokenMissing
	}
	if _, err := uuid.Parse(token); err != nil {
		return "", errors.ErrTokenMalformed
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		var s session
		err := r.db.QueryRowContext(ctx,
			`SELECT username, expires_at FROM sessions WHERE token = $1`,
			token,
		).Scan(&s.identity, &s.expiresAt)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", errors.ErrTokenNotFound
		}
		r.log.Error("session lookup failed", zap.Error(err))
		return "", fmt.Errorf("session lookup: %w", err)
	}

	s, ok := result.(session)
	if !ok {
		return "", fmt.Errorf("session lookup: unexpected result type")
	}
	if s.expiresAt.Before(time.Now()) {
		return "", errors.ErrTokenExpired
	}
	return s.identity, nil
}
