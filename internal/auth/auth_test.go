package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_IssueAndValidate(t *testing.T) {
	v := NewVerifier("s3cret", "queue-veto", nil)

	tok, err := v.IssueToken("p1", time.Minute)
	require.NoError(t, err)

	id, err := v.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("s3cret", "queue-veto", nil)

	expired, err := v.IssueToken("p1", -time.Minute)
	require.NoError(t, err)
	otherKey, err := NewVerifier("different", "queue-veto", nil).IssueToken("p1", time.Minute)
	require.NoError(t, err)
	otherIssuer, err := NewVerifier("s3cret", "someone-else", nil).IssueToken("p1", time.Minute)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "queue-veto",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"no subject":   noSubject,
		"garbage":      "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(tok)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("s3cret", "", nil)
	tok, err := v.IssueToken("p7", time.Minute)
	require.NoError(t, err)

	var seen string
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PlayerID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p7", seen)

	seen = ""
	req = httptest.NewRequest(http.MethodGet, "/queue/events?token="+tok, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p7", seen)

	req = httptest.NewRequest(http.MethodGet, "/queue", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/queue", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
