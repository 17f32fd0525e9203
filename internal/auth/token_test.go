package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cayman031/study-with-me/internal/member"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	clock := newFakeClock(testStart)
	codec := newTestCodec(t, clock)

	pair, err := codec.Issue("member-1", member.RoleHost)
	require.NoError(t, err)

	assert.Equal(t, testStart.Add(15*time.Minute), pair.AccessExpiresAt)
	assert.Equal(t, testStart.Add(14*24*time.Hour), pair.RefreshExpiresAt)

	principal, err := codec.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, Principal{MemberID: "member-1", Role: member.RoleHost}, principal)

	subject, err := codec.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "member-1", subject)
}

func TestAccessTokenExpiryBoundary(t *testing.T) {
	clock := newFakeClock(testStart)
	codec := newTestCodec(t, clock)

	pair, err := codec.Issue("member-1", member.RoleParticipant)
	require.NoError(t, err)

	clock.Advance(15*time.Minute - time.Second)
	_, err = codec.ParseAccess(pair.AccessToken)
	assert.NoError(t, err)

	clock.Advance(time.Second)
	_, err = codec.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshTokenExpires(t *testing.T) {
	clock := newFakeClock(testStart)
	codec := newTestCodec(t, clock)

	pair, err := codec.Issue("member-1", member.RoleParticipant)
	require.NoError(t, err)

	clock.Advance(14*24*time.Hour + time.Second)
	_, err = codec.ParseRefresh(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	codec := newTestCodec(t, newFakeClock(testStart))

	pair, err := codec.Issue("member-1", member.RoleParticipant)
	require.NoError(t, err)

	_, err = codec.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = codec.ParseRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	clock := newFakeClock(testStart)
	other, err := NewCodecWithClock(strings.Repeat("z", 32), time.Minute, time.Hour, clock.Now)
	require.NoError(t, err)

	pair, err := other.Issue("member-1", member.RoleParticipant)
	require.NoError(t, err)

	_, err = newTestCodec(t, clock).ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsUnsignedToken(t *testing.T) {
	clock := newFakeClock(testStart)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, tokenClaims{
		Role: string(member.RoleAdmin),
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "member-1",
			ExpiresAt: jwt.NewNumericDate(testStart.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestCodec(t, clock).ParseAccess(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsMissingExpiry(t *testing.T) {
	codec := newTestCodec(t, newFakeClock(testStart))
	token, err := codec.sign(tokenClaims{
		Role:             string(member.RoleParticipant),
		Type:             tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "member-1"},
	})
	require.NoError(t, err)

	_, err = codec.ParseAccess(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsGarbage(t *testing.T) {
	codec := newTestCodec(t, newFakeClock(testStart))

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := codec.ParseAccess(token)
		assert.ErrorIs(t, err, ErrTokenInvalid, token)
	}
}

func TestNewCodecRejectsShortKey(t *testing.T) {
	_, err := NewCodec(strings.Repeat("k", MinSigningKeyBytes-1), time.Minute, time.Hour)
	assert.ErrorIs(t, err, ErrSigningKeyTooShort)
}

func TestIssueIsUniqueWithinOneSecond(t *testing.T) {
	codec := newTestCodec(t, newFakeClock(testStart))

	first, err := codec.Issue("member-1", member.RoleParticipant)
	require.NoError(t, err)
	second, err := codec.Issue("member-1", member.RoleParticipant)
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
}

func TestAccessExpiresAtRejectsRefreshToken(t *testing.T) {
	codec := newTestCodec(t, newFakeClock(testStart))
	pair, err := codec.Issue("member-1", member.RoleParticipant)
	require.NoError(t, err)

	accessExp, err := codec.AccessExpiresAt(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, pair.AccessExpiresAt, accessExp)

	_, err = codec.AccessExpiresAt(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.Len(t, HashToken("abc"), 64)
	assert.True(t, hashesEqual(HashToken("abc"), HashToken("abc")))
	assert.False(t, hashesEqual(HashToken("abc"), HashToken("abd")))
}
