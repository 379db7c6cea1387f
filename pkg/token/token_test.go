package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	return sign(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:        "admin",
		Email:       "admin@example.com",
		Permissions: []string{"orders:read"},
	})
}

func TestDecode_Malformed(t *testing.T) {
	payloadOnly := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":"soon"}`))
	noExp := sign(t, jwt.MapClaims{"sub": "user-1"})

	cases := map[string]string{
		"empty":       "",
		"whitespace":  "   ",
		"garbage":     "not-a-token",
		"two parts":   "abc.def",
		"bad base64":  "%%%.%%%.%%%",
		"string exp":  "eyJhbGciOiJIUzI1NiJ9." + payloadOnly + ".sig",
		"missing exp": noExp,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, Decode(raw))
			assert.False(t, IsValid(raw, testNow))
			assert.False(t, ShouldRefresh(raw, testNow, DefaultRefreshThreshold))
			_, ok := ExpiryTimeMillis(raw)
			assert.False(t, ok)
		})
	}
}

func TestDecode_Claims(t *testing.T) {
	raw := tokenExpiringAt(t, testNow.Add(time.Hour))

	claims := Decode(raw)
	require.NotNil(t, claims)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())

	user := UserFromClaims(claims)
	require.NotNil(t, user)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "admin", user.Role)
	assert.Equal(t, []string{"orders:read"}, user.Permissions)

	ms, ok := ExpiryTimeMillis(raw)
	require.True(t, ok)
	assert.Equal(t, testNow.Add(time.Hour).UnixMilli(), ms)
}

func TestDecode_IgnoresSignature(t *testing.T) {
	raw := tokenExpiringAt(t, testNow.Add(time.Hour))
	tampered := raw[:len(raw)-4] + "AAAA"
	assert.NotNil(t, Decode(tampered))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(tokenExpiringAt(t, testNow.Add(3600*time.Second)), testNow))
	assert.False(t, IsValid(tokenExpiringAt(t, testNow.Add(-time.Second)), testNow))
	assert.False(t, IsValid(tokenExpiringAt(t, testNow), testNow))
}

func TestShouldRefresh(t *testing.T) {
	threshold := 300 * time.Second

	cases := []struct {
		name      string
		remaining time.Duration
		want      bool
	}{
		{"outside threshold", 301 * time.Second, false},
		{"at threshold", 300 * time.Second, true},
		{"inside threshold", 10 * time.Second, true},
		{"exactly expired", 0, false},
		{"already expired", -time.Minute, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := tokenExpiringAt(t, testNow.Add(tc.remaining))
			assert.Equal(t, tc.want, ShouldRefresh(raw, testNow, threshold))
		})
	}
}

func TestExpiredTokenNeverValidEvenWhenDue(t *testing.T) {
	raw := tokenExpiringAt(t, testNow.Add(-time.Second))
	assert.False(t, IsValid(raw, testNow))
	assert.False(t, ShouldRefresh(raw, testNow, time.Hour))
}

func TestUserFromClaims_PrefersUserID(t *testing.T) {
	claims := &Claims{UserID: "u-42"}
	claims.Subject = "sub-1"
	assert.Equal(t, "u-42", UserFromClaims(claims).ID)
	assert.Nil(t, UserFromClaims(nil))
}
