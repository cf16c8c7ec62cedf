package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jw "github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	assertionLifetime = time.Hour
)

// Minter produces a bearer token for one dispatch batch.
type Minter interface {
	Mint(ctx context.Context) (BearerToken, error)
}

// AssertionMinter exchanges an RS256 signed assertion for an access token
// at the credential's token endpoint. It never retries.
type AssertionMinter struct {
	cred   *ServiceCredential
	client *http.Client
	scope  string
	now    func() time.Time
}

type MinterOption func(*AssertionMinter)

func WithHTTPClient(c *http.Client) MinterOption {
	return func(m *AssertionMinter) { m.client = c }
}

func WithScope(scope string) MinterOption {
	return func(m *AssertionMinter) { m.scope = scope }
}

func WithClock(now func() time.Time) MinterOption {
	return func(m *AssertionMinter) { m.now = now }
}

func NewAssertionMinter(cred *ServiceCredential, opts ...MinterOption) *AssertionMinter {
	m := &AssertionMinter{
		cred: cred,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		scope: MessagingScope,
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Assertion builds the signed JWT presented to the token endpoint.
func (m *AssertionMinter) Assertion() (string, error) {
	if m.cred == nil || m.cred.key == nil {
		return "", fmt.Errorf("%w: credential not loaded", ErrCredential)
	}
	now := m.now()
	claims := jw.MapClaims{
		"iss":   m.cred.ClientEmail,
		"scope": m.scope,
		"aud":   m.cred.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}
	tok := jw.NewWithClaims(jw.SigningMethodRS256, claims)
	if m.cred.PrivateKeyID != "" {
		tok.Header["kid"] = m.cred.PrivateKeyID
	}
	signed, err := tok.SignedString(m.cred.key)
	if err != nil {
		return "", fmt.Errorf("%w: sign assertion: %v", ErrCredential, err)
	}
	return signed, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (m *AssertionMinter) Mint(ctx context.Context) (BearerToken, error) {
	assertion, err := m.Assertion()
	if err != nil {
		return BearerToken{}, err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cred.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return BearerToken{}, fmt.Errorf("%w: %v", ErrCredential, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	issued := m.now()
	resp, err := m.client.Do(req)
	if err != nil {
		return BearerToken{}, fmt.Errorf("%w: token request: %v", ErrProviderAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return BearerToken{}, fmt.Errorf("%w: read token response: %v", ErrProviderAuth, err)
	}

	var tr tokenResponse
	_ = json.Unmarshal(body, &tr)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := tr.Error
		if tr.ErrorDescription != "" {
			detail += ": " + tr.ErrorDescription
		}
		if detail == "" {
			detail = strings.TrimSpace(string(body))
		}
		return BearerToken{}, fmt.Errorf("%w: status %d: %s", ErrProviderAuth, resp.StatusCode, detail)
	}
	if tr.AccessToken == "" {
		return BearerToken{}, fmt.Errorf("%w: no access_token in response", ErrProviderAuth)
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = assertionLifetime
	}
	return BearerToken{Value: tr.AccessToken, Expiry: issued.Add(lifetime)}, nil
}

type unavailable struct{ err error }

// Unavailable is a Minter that always fails with err. It stands in when the
// credential could not be loaded at startup so every batch reports the cause.
func Unavailable(err error) Minter { return unavailable{err: err} }

func (u unavailable) Mint(context.Context) (BearerToken, error) { return BearerToken{}, u.err }
