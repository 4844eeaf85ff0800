package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/technoelf/stomata/internal/auth"
	"github.com/technoelf/stomata/internal/station"
)

// CredentialStore looks up the stored credential hash of a station. It
// returns station.ErrStationNotFound for unknown identities.
type CredentialStore interface {
	TokenHash(ctx context.Context, id int64) (string, error)
}

// VerifyFunc checks a presented token against a stored hash.
type VerifyFunc func(id int64, token, storedHash string) (bool, error)

// HandshakeResult classifies one registration attempt.
type HandshakeResult string

const (
	HandshakeAccepted  HandshakeResult = "accepted"
	HandshakeMalformed HandshakeResult = "malformed"
	HandshakeRejected  HandshakeResult = "rejected"
	HandshakeUnknown   HandshakeResult = "unknown_station"
	HandshakeError     HandshakeResult = "error"
)

// registerMessage is the first text frame a station sends.
type registerMessage struct {
	ID    *int64  `json:"id"`
	Token *string `json:"token"`
}

// Authenticator verifies registration messages.
type Authenticator struct {
	store         CredentialStore
	verify        VerifyFunc
	lookupTimeout time.Duration
	logger        Logger
}

// NewAuthenticator creates an Authenticator. A nil verify uses
// auth.VerifyStationToken.
func NewAuthenticator(store CredentialStore, verify VerifyFunc) *Authenticator {
	if verify == nil {
		verify = auth.VerifyStationToken
	}
	return &Authenticator{
		store:         store,
		verify:        verify,
		lookupTimeout: 2 * time.Second,
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger for the authenticator.
func (a *Authenticator) SetLogger(logger Logger) {
	a.logger = logger
}

// Authenticate parses payload as {"id":<int>,"token":"<string>"} and checks
// it against the store. The identity is only meaningful when the result is
// HandshakeAccepted.
func (a *Authenticator) Authenticate(ctx context.Context, payload []byte) (int64, HandshakeResult) {
	var msg registerMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.ID == nil || msg.Token == nil {
		return 0, HandshakeMalformed
	}
	id := *msg.ID

	ctx, cancel := context.WithTimeout(ctx, a.lookupTimeout)
	defer cancel()

	hash, err := a.store.TokenHash(ctx, id)
	if err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			return id, HandshakeUnknown
		}
		a.logger.Warn("credential lookup failed", "station_id", id, "error", err)
		return id, HandshakeError
	}

	ok, err := a.verify(id, *msg.Token, hash)
	if err != nil {
		a.logger.Warn("credential verification failed", "station_id", id, "error", err)
		return id, HandshakeError
	}
	if !ok {
		return id, HandshakeRejected
	}
	return id, HandshakeAccepted
}
