package auth

import (
	"context"
	"time"
)

type RevocationStore interface {
	// AddRevoked must be idempotent for an existing hash.
	AddRevoked(ctx context.Context, tokenHash string, expiresAt time.Time) error
	// IsRevoked reports an entry with expiresAt after now.
	IsRevoked(ctx context.Context, tokenHash string, now time.Time) (bool, error)
}

// RevocationList denylists still-valid access tokens until their own expiry.
type RevocationList struct {
	store RevocationStore
	codec *Codec
	now   func() time.Time
}

func NewRevocationList(store RevocationStore, codec *Codec) *RevocationList {
	return &RevocationList{store: store, codec: codec, now: codec.now}
}

// Revoke records an access token as revoked. Refresh tokens, tokens that
// cannot be decoded and already expired tokens are ignored; persistence
// errors are returned.
func (l *RevocationList) Revoke(ctx context.Context, token string) error {
	expiresAt, err := l.codec.AccessExpiresAt(token)
	if err != nil {
		return nil
	}
	if !expiresAt.After(l.now()) {
		return nil
	}

	return l.store.AddRevoked(ctx, HashToken(token), expiresAt)
}

func (l *RevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	return l.store.IsRevoked(ctx, HashToken(token), l.now())
}
