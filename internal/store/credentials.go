package store

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const authPrefix = "swashark.auth."

// Credentials maps security scheme names to the credential a user entered
// for them (bearer token, API key value, basic user:password, OAuth2 access
// token).
type Credentials struct {
	kv  KV
	log zerolog.Logger
}

func NewCredentials(kv KV, log zerolog.Logger) *Credentials {
	return &Credentials{kv: kv, log: log}
}

func (c *Credentials) Get(scheme string) (string, bool) {
	v, ok, err := c.kv.Get(authPrefix + scheme)
	if err != nil {
		c.log.Warn().Err(err).Str("scheme", scheme).Msg("credential read failed")
		return "", false
	}
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func (c *Credentials) Set(scheme, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		c.Remove(scheme)
		return
	}
	if err := c.kv.Set(authPrefix+scheme, value); err != nil {
		c.log.Warn().Err(err).Str("scheme", scheme).Msg("credential write failed")
	}
}

func (c *Credentials) Remove(scheme string) {
	if err := c.kv.Remove(authPrefix + scheme); err != nil {
		c.log.Warn().Err(err).Str("scheme", scheme).Msg("credential remove failed")
	}
}

// Schemes lists the names that currently hold a credential.
func (c *Credentials) Schemes() []string {
	keys, err := c.kv.Keys(authPrefix)
	if err != nil {
		c.log.Warn().Err(err).Msg("credential list failed")
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strings.TrimPrefix(k, authPrefix)
	}
	return out
}

// TokenInfo is what can be read from a JWT without verifying it.
type TokenInfo struct {
	Subject   string    `json:"subject,omitempty"`
	Issuer    string    `json:"issuer,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	Expired   bool      `json:"expired"`
}

// DescribeToken decodes token as a JWT for display. The signature is not
// checked; ok is false for anything that is not a JWT.
func DescribeToken(token string, now time.Time) (TokenInfo, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &claims); err != nil {
		return TokenInfo{}, false
	}
	info := TokenInfo{Subject: claims.Subject, Issuer: claims.Issuer}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		info.Expired = now.After(claims.ExpiresAt.Time)
	}
	return info, true
}

// Mask hides all but the last four characters of a secret.
func Mask(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
