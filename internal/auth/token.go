package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cayman031/study-with-me/internal/member"
)

const (
	MinSigningKeyBytes = 32

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
)

type tokenClaims struct {
	Role string `json:"role,omitempty"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 access and refresh tokens. It holds no
// mutable state after construction and is safe for concurrent use.
type Codec struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

func NewCodec(secret string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	return newCodec([]byte(secret), accessTTL, refreshTTL, func() time.Time { return time.Now().UTC() })
}

// NewCodecWithClock is NewCodec with an injected time source.
func NewCodecWithClock(secret string, accessTTL, refreshTTL time.Duration, now func() time.Time) (*Codec, error) {
	return newCodec([]byte(secret), accessTTL, refreshTTL, now)
}

func newCodec(key []byte, accessTTL, refreshTTL time.Duration, now func() time.Time) (*Codec, error) {
	if len(key) < MinSigningKeyBytes {
		return nil, ErrSigningKeyTooShort
	}
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}

	c := &Codec{
		key:        append([]byte(nil), key...),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	return c, nil
}

func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

func (c *Codec) Issue(memberID string, role member.Role) (TokenPair, error) {
	issuedAt := jwt.NewNumericDate(c.now())
	accessExp := jwt.NewNumericDate(issuedAt.Add(c.accessTTL))
	refreshExp := jwt.NewNumericDate(issuedAt.Add(c.refreshTTL))

	access, err := c.sign(tokenClaims{
		Role: string(role),
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   memberID,
			IssuedAt:  issuedAt,
			ExpiresAt: accessExp,
		},
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := c.sign(tokenClaims{
		Type: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   memberID,
			IssuedAt:  issuedAt,
			ExpiresAt: refreshExp,
		},
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp.Time.UTC(),
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp.Time.UTC(),
	}, nil
}

func (c *Codec) ParseAccess(token string) (Principal, error) {
	claims, err := c.parse(token, tokenTypeAccess)
	if err != nil {
		return Principal{}, err
	}
	if claims.Role == "" {
		return Principal{}, ErrTokenInvalid
	}

	return Principal{MemberID: claims.Subject, Role: member.Role(claims.Role)}, nil
}

func (c *Codec) ParseRefresh(token string) (string, error) {
	claims, err := c.parse(token, tokenTypeRefresh)
	if err != nil {
		return "", err
	}

	return claims.Subject, nil
}

// AccessExpiresAt verifies an access token and returns its exp claim.
func (c *Codec) AccessExpiresAt(token string) (time.Time, error) {
	claims, err := c.parse(token, tokenTypeAccess)
	if err != nil {
		return time.Time{}, err
	}

	return claims.ExpiresAt.Time.UTC(), nil
}

func (c *Codec) sign(claims tokenClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

func (c *Codec) parse(token, wantType string) (*tokenClaims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &tokenClaims{}
	parsed, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Type != wantType {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
