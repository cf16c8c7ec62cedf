// Package credential turns the push provider's service-account credential
// into short-lived bearer tokens.
package credential

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jw "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrCredential reports a missing or malformed service credential.
	ErrCredential = errors.New("service credential error")
	// ErrProviderAuth reports that the token endpoint rejected the assertion.
	ErrProviderAuth = errors.New("provider auth error")
)

const DefaultTokenURI = "https://oauth2.googleapis.com/token"

// ServiceCredential is the service-account document issued by the push
// provider. It is loaded once at startup and never changes afterwards.
type ServiceCredential struct {
	ProjectID    string `json:"project_id"`
	ClientEmail  string `json:"client_email"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	TokenURI     string `json:"token_uri"`

	key *rsa.PrivateKey
}

// ParseServiceCredential decodes and validates a service-account JSON
// document, including its PEM encoded RSA key.
func ParseServiceCredential(data []byte) (*ServiceCredential, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty credential", ErrCredential)
	}
	var c ServiceCredential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCredential, err)
	}
	if c.ClientEmail == "" {
		return nil, fmt.Errorf("%w: client_email missing", ErrCredential)
	}
	if c.PrivateKey == "" {
		return nil, fmt.Errorf("%w: private_key missing", ErrCredential)
	}
	key, err := jw.ParseRSAPrivateKeyFromPEM([]byte(c.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrCredential, err)
	}
	c.key = key
	if c.TokenURI == "" {
		c.TokenURI = DefaultTokenURI
	}
	return &c, nil
}

// BearerToken is an access token for the provider API. It only lives in
// memory (or in the shared cache) and is recomputed once expired.
type BearerToken struct {
	Value  string    `json:"value"`
	Expiry time.Time `json:"expiry"`
}

// Valid reports whether the token is usable at now with skew to spare.
func (t BearerToken) Valid(now time.Time, skew time.Duration) bool {
	return t.Value != "" && now.Add(skew).Before(t.Expiry)
}

func (t BearerToken) Header() string { return "Bearer " + t.Value }
