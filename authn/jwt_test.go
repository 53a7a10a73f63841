package authn

import (
	"context"
	"testing"
	"time"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/records"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestJWTResolver_RoundTrip(t *testing.T) {
	r, err := NewJWTResolver(testSecret, WithIssuer("table-api"))
	require.NoError(t, err)

	token, err := r.Issue(records.NewAuth(5, 2, 7), time.Minute)
	require.NoError(t, err)

	for _, header := range []string{"Bearer " + token, "bearer " + token, token} {
		auth, err := r.Resolve(context.Background(), header)
		require.NoError(t, err)
		assert.Equal(t, records.NewAuth(5, 2, 7), auth)
	}
}

func TestJWTResolver_NullCompany(t *testing.T) {
	r, err := NewJWTResolver(testSecret)
	require.NoError(t, err)

	token, err := r.Issue(&records.Auth{RoleID: 1}, time.Minute)
	require.NoError(t, err)

	auth, err := r.Resolve(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	require.NotNil(t, auth, "tokens never resolve to the unscoped caller")
	assert.Nil(t, auth.CompanyID)
	assert.Nil(t, auth.CallerID)

	shared := records.Record{records.FieldCompanyID: nil}
	assert.True(t, records.CanRead(shared, auth))
	assert.False(t, records.CanWrite(shared, auth))
	assert.False(t, records.CanWrite(records.Record{records.FieldCompanyID: int64(7)}, auth))
}

func TestJWTResolver_Rejects(t *testing.T) {
	r, err := NewJWTResolver(testSecret, WithIssuer("table-api"))
	require.NoError(t, err)

	other, err := NewJWTResolver([]byte("other-secret"), WithIssuer("table-api"))
	require.NoError(t, err)
	foreign, err := other.Issue(records.NewAuth(1, 1, 1), time.Minute)
	require.NoError(t, err)

	expired, err := r.Issue(records.NewAuth(1, 1, 1), -time.Minute)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "table-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "table-api"},
	}).SignedString(testSecret)
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"empty", "", CodeMissingToken},
		{"bearer without token", "Bearer ", CodeMissingToken},
		{"garbage", "Bearer not-a-jwt", CodeInvalidToken},
		{"foreign secret", "Bearer " + foreign, CodeInvalidToken},
		{"expired", "Bearer " + expired, CodeInvalidToken},
		{"alg none", "Bearer " + unsigned, CodeInvalidToken},
		{"no expiry", "Bearer " + noExpiry, CodeInvalidToken},
		{"wrong issuer", "Bearer " + wrongIssuer, CodeInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := r.Resolve(context.Background(), tt.header)
			assert.Nil(t, auth)

			var fe *fault.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, fault.KindNotAuthorized, fe.Kind)
			assert.Equal(t, tt.code, fe.Code)
		})
	}
}

func TestJWTResolver_InvalidWrapsSentinel(t *testing.T) {
	r, err := NewJWTResolver(testSecret)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "Bearer x.y.z")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTResolver(nil)
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	auth, err := Static(nil).Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, auth)
}
