package jwt

import (
	"errors"

	jw "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("jwt secret not configured")
)

// Verifier validates HS256 tokens issued by the user service.
type Verifier struct{ secret []byte }

func NewVerifier(secret string) *Verifier { return &Verifier{secret: []byte(secret)} }

// Parse validates the token and returns the user id from the "sub" claim.
// Expiry is enforced by the parser when the claim is present.
func (v *Verifier) Parse(tok string) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrNoSecret
	}
	t, err := jw.Parse(tok, func(t *jw.Token) (any, error) {
		return v.secret, nil
	}, jw.WithValidMethods([]string{jw.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return "", ErrInvalidToken
	}
	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("no subject")
	}
	return sub, nil
}
