// Package auth mints and verifies the signed tokens of a login session:
// short-lived access tokens and longer-lived refresh tokens, each signed
// with its own secret so compromise of one cannot forge the other.
package auth

import (
	"errors"
	"time"

	"github.com/akovalyov/cliphub/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims includes the registered claims plus the account id the token
// was issued for.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// Issuer holds the signing material handed to it once at startup.
// No ambient globals: construct it from config and inject it.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewIssuer(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssueAccess signs a short-lived access token for the given account.
func (i *Issuer) IssueAccess(userID string) (string, error) {
	return generateToken(userID, i.accessSecret, i.accessTTL)
}

// IssueRefresh signs a refresh token for the given account with the
// independent refresh secret and the longer TTL.
func (i *Issuer) IssueRefresh(userID string) (string, error) {
	return generateToken(userID, i.refreshSecret, i.refreshTTL)
}

// VerifyAccess checks signature and expiry of an access token and returns
// the account id it was issued for.
func (i *Issuer) VerifyAccess(token string) (string, error) {
	return verifyToken(token, i.accessSecret)
}

// VerifyRefresh checks signature and expiry of a refresh token and returns
// the account id it was issued for. Equality with the stored session value
// is the caller's concern.
func (i *Issuer) VerifyRefresh(token string) (string, error) {
	return verifyToken(token, i.refreshSecret)
}

func generateToken(userID string, secret []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// Timestamps have second granularity, so the jti is what keeps
			// two tokens minted in the same second distinct. Rotation relies
			// on that.
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func verifyToken(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
