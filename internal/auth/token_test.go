package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("unit-test-secret")

func TestAuthority_IssueVerifyRoundTrip(t *testing.T) {
	a, err := NewAuthority(testSecret, time.Hour)
	require.NoError(t, err)

	token, err := a.Issue(7, "warung1", "device-42", "pro")
	require.NoError(t, err)

	claims, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "warung1", claims.Username)
	assert.Equal(t, "device-42", claims.DeviceID)
	assert.Equal(t, "pro", claims.PlanType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestAuthority_RejectsExpired(t *testing.T) {
	a, err := NewAuthority(testSecret, time.Hour)
	require.NoError(t, err)

	// Forge an already-expired token with the right secret.
	claims := &Claims{
		UserID: 7, Username: "warung1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = a.Verify(signed)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthority_RejectsWrongSecret(t *testing.T) {
	a, _ := NewAuthority(testSecret, time.Hour)
	b, _ := NewAuthority([]byte("another-secret"), time.Hour)

	token, err := b.Issue(1, "u", "", "free")
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthority_RejectsWrongAlgorithm(t *testing.T) {
	a, _ := NewAuthority(testSecret, time.Hour)

	claims := &Claims{
		UserID: 1, Username: "u",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	// HMAC family but not HS256 — the pinned method must reject it.
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = a.Verify(signed)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthority_RejectsMissingClaims(t *testing.T) {
	a, _ := NewAuthority(testSecret, time.Hour)

	cases := map[string]*Claims{
		"no user id": {
			Username: "u",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		},
		"no username": {
			UserID: 9,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		},
		"no expiry": {UserID: 9, Username: "u"},
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
			require.NoError(t, err)
			_, err = a.Verify(signed)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestAuthority_RejectsGarbage(t *testing.T) {
	a, _ := NewAuthority(testSecret, time.Hour)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := a.Verify(tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/products", nil)
	_, err := BearerToken(r)
	assert.ErrorIs(t, err, ErrUnauthorized)

	r.Header.Set("Authorization", "Basic abc")
	_, err = BearerToken(r)
	assert.ErrorIs(t, err, ErrUnauthorized)

	r.Header.Set("Authorization", "Bearer ")
	_, err = BearerToken(r)
	assert.ErrorIs(t, err, ErrUnauthorized)

	r.Header.Set("Authorization", "Bearer tok123")
	tok, err := BearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "tok123", tok)
}
