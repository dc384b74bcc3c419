package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const googleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

// GoogleUserInfo holds the identity extracted from a verified Google ID
// token.
type GoogleUserInfo struct {
	Subject string
	Email   string
	Name    string
}

type googleJWK struct {
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type googleJWKResponse struct {
	Keys []googleJWK `json:"keys"`
}

// GoogleVerifier validates Google ID tokens against Google's published JWKS.
// Keys are cached for an hour; Google rotates them frequently.
type GoogleVerifier struct {
	audience string

	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	keysExpire time.Time

	httpClient *http.Client
}

func NewGoogleVerifier(audience string) *GoogleVerifier {
	return &GoogleVerifier{
		audience:   audience,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GoogleVerifier) publicKeys() (map[string]*rsa.PublicKey, error) {
	g.mu.RLock()
	if time.Now().Before(g.keysExpire) && g.keys != nil {
		defer g.mu.RUnlock()
		return g.keys, nil
	}
	g.mu.RUnlock()

	resp, err := g.httpClient.Get(googleCertsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Google certs: %w", err)
	}
	defer resp.Body.Close()

	var keyResp googleJWKResponse
	if err := json.NewDecoder(resp.Body).Decode(&keyResp); err != nil {
		return nil, fmt.Errorf("failed to decode Google keys: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, key := range keyResp.Keys {
		pubKey, err := jwkToPublicKey(key.N, key.E)
		if err != nil {
			return nil, fmt.Errorf("failed to convert JWK to public key: %w", err)
		}
		keys[key.Kid] = pubKey
	}

	g.mu.Lock()
	g.keys = keys
	g.keysExpire = time.Now().Add(1 * time.Hour)
	g.mu.Unlock()

	return keys, nil
}

func jwkToPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp int
	for _, b := range eb {
		exp = exp<<8 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: exp,
	}, nil
}

// Verify checks the signature, audience, issuer, and expiry of a Google ID
// token and returns the embedded identity.
func (g *GoogleVerifier) Verify(tokenStr string) (*GoogleUserInfo, error) {
	keys, err := g.publicKeys()
	if err != nil {
		return nil, fmt.Errorf("failed to get Google public keys: %w", err)
	}

	// First pass without verification, only to read the kid header.
	parser := new(jwt.Parser)
	unverifiedToken, _, err := parser.ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	kid, ok := unverifiedToken.Header["kid"].(string)
	if !ok {
		return nil, errors.New("token missing kid header")
	}

	pubKey, exists := keys[kid]
	if !exists {
		return nil, errors.New("no matching Google public key found")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return pubKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid Google ID token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("failed to parse claims")
	}

	if aud, ok := claims["aud"].(string); !ok || aud != g.audience {
		return nil, errors.New("invalid audience in Google ID token")
	}
	if iss, ok := claims["iss"].(string); !ok || (iss != "accounts.google.com" && iss != "https://accounts.google.com") {
		return nil, errors.New("invalid issuer in Google ID token")
	}
	if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
		return nil, errors.New("google ID token expired")
	}

	sub, _ := claims["sub"].(string)
	email, emailOk := claims["email"].(string)
	if !emailOk {
		return nil, errors.New("email claim not found in Google ID token")
	}
	name, _ := claims["name"].(string)

	return &GoogleUserInfo{
		Subject: sub,
		Email:   strings.ToLower(email),
		Name:    name,
	}, nil
}
