package authn

import (
	"context"
	"errors"
	"time"

	"github.com/dwidge/table-api/records"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Claims carry the identity fields next to the registered claims
type Claims struct {
	jwt.RegisteredClaims
	CallerID  *int64 `json:"id"`
	RoleID    int64  `json:"roleId"`
	CompanyID *int64 `json:"companyId"`
}

// JWTResolver validates HMAC signed tokens locally
type JWTResolver struct {
	secret []byte
	issuer string
	leeway time.Duration
	log    *zap.Logger
}

type JWTOption func(*JWTResolver)

func WithIssuer(issuer string) JWTOption {
	return func(r *JWTResolver) { r.issuer = issuer }
}

func WithLeeway(d time.Duration) JWTOption {
	return func(r *JWTResolver) { r.leeway = d }
}

func WithJWTLogger(log *zap.Logger) JWTOption {
	return func(r *JWTResolver) {
		if log != nil {
			r.log = log.Named("authn")
		}
	}
}

func NewJWTResolver(secret []byte, opts ...JWTOption) (*JWTResolver, error) {
	if len(secret) == 0 {
		return nil, errors.New("authn: empty jwt secret")
	}
	r := &JWTResolver{secret: secret, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve validates the bearer token. The result is never nil: a token
// without companyId yields a caller limited to shared rows.
func (r *JWTResolver) Resolve(_ context.Context, header string) (*records.Auth, error) {
	raw, err := BearerToken(header)
	if err != nil {
		return nil, err
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(r.leeway),
	}
	if r.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(r.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, parserOpts...)
	if err != nil {
		r.log.Debug("token rejected", zap.Error(err))
		return nil, invalid(err)
	}
	if !token.Valid {
		return nil, invalid(errors.New("token is not valid"))
	}

	return &records.Auth{
		CallerID:  claims.CallerID,
		RoleID:    claims.RoleID,
		CompanyID: claims.CompanyID,
	}, nil
}

// Issue signs a token for auth that expires after ttl
func (r *JWTResolver) Issue(auth *records.Auth, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if auth != nil {
		claims.CallerID = auth.CallerID
		claims.RoleID = auth.RoleID
		claims.CompanyID = auth.CompanyID
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}
