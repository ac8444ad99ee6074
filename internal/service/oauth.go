package service

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	googleCertsURL     = "https://www.googleapis.com/oauth2/v3/certs"
	googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	jwksCacheTTL       = time.Hour
)

// GoogleIdentity is the verified subset of a Google ID token we act on.
type GoogleIdentity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// GoogleVerifier checks Google-issued ID tokens.  The primary path verifies
// the RS256 signature locally against Google's published JWKS; the tokeninfo
// endpoint is a fallback for when the key set is unreachable or the token's
// key id is unknown, never for tokens the local path has definitively
// rejected.
type GoogleVerifier struct {
	ClientID     string
	HTTPClient   *http.Client
	CertsURL     string
	TokenInfoURL string

	mu          sync.Mutex
	keys        map[string]*rsa.PublicKey
	keysFetched time.Time
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{
		ClientID:     clientID,
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
		CertsURL:     googleCertsURL,
		TokenInfoURL: googleTokenInfoURL,
	}
}

// errKeyUnavailable marks failures where we could not obtain the signing
// key, as opposed to a token that failed validation outright.
var errKeyUnavailable = errors.New("signing key unavailable")

// Verify validates an ID token and returns the identity it asserts.
func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	ident, err := g.verifyLocal(ctx, idToken)
	if err == nil {
		return ident, nil
	}
	if !errors.Is(err, errKeyUnavailable) {
		return nil, err
	}
	return g.verifyTokenInfo(ctx, idToken)
}

func (g *GoogleVerifier) verifyLocal(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	type googleClaims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		jwt.RegisteredClaims
	}

	claims := &googleClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no key id")
		}
		key, err := g.signingKey(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key, nil
	})
	if err != nil {
		if errors.Is(err, errKeyUnavailable) {
			return nil, errKeyUnavailable
		}
		return nil, fmt.Errorf("id token rejected: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("id token rejected")
	}

	if iss := claims.Issuer; iss != "accounts.google.com" && iss != "https://accounts.google.com" {
		return nil, fmt.Errorf("unexpected issuer %q", iss)
	}
	if !audienceContains(claims.Audience, g.ClientID) {
		return nil, errors.New("token audience does not match client id")
	}
	if claims.Email == "" {
		return nil, errors.New("token carries no email")
	}
	return &GoogleIdentity{
		Subject:       claims.Subject,
		Email:         strings.ToLower(claims.Email),
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// signingKey returns the RSA key for kid, refreshing the cached JWKS when
// the kid is unknown or the cache is stale.  The fetch runs outside the
// mutex so a cold cache does not serialize every concurrent sign-in behind
// one network call; concurrent refreshes are harmless, last writer wins.
func (g *GoogleVerifier) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	g.mu.Lock()
	key, ok := g.keys[kid]
	fresh := time.Since(g.keysFetched) < jwksCacheTTL
	g.mu.Unlock()
	if ok && fresh {
		return key, nil
	}

	keys, err := g.fetchKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errKeyUnavailable, err)
	}

	g.mu.Lock()
	g.keys = keys
	g.keysFetched = time.Now()
	g.mu.Unlock()

	key, ok = keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key id %s", errKeyUnavailable, kid)
	}
	return key, nil
}

func (g *GoogleVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.CertsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("certs endpoint returned %d", resp.StatusCode)
	}

	var doc struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		nb, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		eb, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nb),
			E: int(new(big.Int).SetBytes(eb).Int64()),
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("certs endpoint returned no usable keys")
	}
	return keys, nil
}

// verifyTokenInfo asks Google to validate the token.  All tokeninfo fields
// arrive as strings, including email_verified.
func (g *GoogleVerifier) verifyTokenInfo(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	endpoint := g.TokenInfoURL + "?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokeninfo rejected the token (status %d)", resp.StatusCode)
	}

	var info struct {
		Aud           string `json:"aud"`
		Iss           string `json:"iss"`
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified string `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	if info.Aud != g.ClientID {
		return nil, errors.New("token audience does not match client id")
	}
	if info.Iss != "accounts.google.com" && info.Iss != "https://accounts.google.com" {
		return nil, fmt.Errorf("unexpected issuer %q", info.Iss)
	}
	if info.Email == "" {
		return nil, errors.New("token carries no email")
	}
	return &GoogleIdentity{
		Subject:       info.Sub,
		Email:         strings.ToLower(info.Email),
		Name:          info.Name,
		EmailVerified: info.EmailVerified == "true",
	}, nil
}

func audienceContains(aud jwt.ClaimStrings, clientID string) bool {
	for _, a := range aud {
		if a == clientID {
			return true
		}
	}
	return false
}
