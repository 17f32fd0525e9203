package auth

import (
	"context"
	"time"
)

// RefreshStore persists the single current refresh token hash per member.
type RefreshStore interface {
	SaveRefresh(ctx context.Context, memberID, tokenHash string, expiresAt, now time.Time) error
	ClearRefresh(ctx context.Context, memberID string, now time.Time) error
	// RotateRefresh atomically compares presentedHash with the stored hash
	// and, on match with an unexpired record, replaces it with nextHash.
	// A mismatch clears the stored token and returns errRefreshReuse. A
	// matching but expired record returns ErrTokenExpired and is kept. No
	// record returns errRefreshMissing.
	RotateRefresh(ctx context.Context, memberID, presentedHash, nextHash string, nextExpiresAt, now time.Time) error
}

type RefreshRotation struct {
	store RefreshStore
	now   func() time.Time
}

func NewRefreshRotation(store RefreshStore) *RefreshRotation {
	return &RefreshRotation{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *RefreshRotation) Store(ctx context.Context, memberID, refreshToken string, expiresAt time.Time) error {
	return r.store.SaveRefresh(ctx, memberID, HashToken(refreshToken), expiresAt.UTC(), r.now())
}

// CompareAndRotate swaps presented for next in one atomic step. It must not
// be retried after an ambiguous failure: a rotation that committed would make
// the retry look like reuse.
func (r *RefreshRotation) CompareAndRotate(ctx context.Context, memberID, presented, next string, nextExpiresAt time.Time) error {
	return r.store.RotateRefresh(ctx, memberID, HashToken(presented), HashToken(next), nextExpiresAt.UTC(), r.now())
}

func (r *RefreshRotation) Clear(ctx context.Context, memberID string) error {
	return r.store.ClearRefresh(ctx, memberID, r.now())
}
