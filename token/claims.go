package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Claims holds the locally-decodable subset of an access token's payload.
// Claims are derived from the raw token on demand and are never persisted
// on their own.
type Claims struct {
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// DecodeClaims parses the token payload without verifying the signature.
// Signature verification is the server's job; the client only needs
// issued-at, expiry and the subject id to decide when to refresh.
func DecodeClaims(rawToken string) (*Claims, error) {
	unverifiedToken, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(err, "token.DecodeClaims ParseUnverified")
	}

	claims, ok := unverifiedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("token.DecodeClaims: error extracting claims")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, errors.New("token.DecodeClaims: token missing exp claim")
	}

	iat, _ := claims["iat"].(float64)
	sub, _ := claims["sub"].(string)

	return &Claims{
		SubjectID: sub,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}
