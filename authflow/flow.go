// Package authflow carries per-authorization-attempt data across the redirect
// hops as signed, short-lived tokens. Nothing is stored server-side: a packed
// state token travels to Discord and back, and a wrapped code token travels to
// the relying party and back. Single use of a wrapped code is guaranteed by
// Discord rejecting reuse of the embedded upstream code, not by a local
// registry.
package authflow

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/snowgate-dev/snowgate/internal/errors"
	"github.com/snowgate-dev/snowgate/token"
)

// Envelope kind discriminator. A state token must never unwrap as a code
// token or vice versa.
const (
	useState = "state"
	useCode  = "code"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// State is one in-flight authorization attempt, created at /authorize and
// consumed at the callback.
type State struct {
	Scopes      []string
	ClientState string
	Nonce       string
	RedirectURI string
}

// WrappedCode couples Discord's authorization code with the scope and nonce
// data recovered from the transaction. The relying party only ever sees the
// wrapped form.
type WrappedCode struct {
	Code   string
	Scopes []string
	Nonce  string
}

// Manager packs and unpacks the two envelope kinds.
type Manager struct {
	codec         *token.Codec
	stateLifetime time.Duration
	codeLifetime  time.Duration
}

func NewManager(codec *token.Codec, stateLifetime, codeLifetime time.Duration) *Manager {
	return &Manager{
		codec:         codec,
		stateLifetime: stateLifetime,
		codeLifetime:  codeLifetime,
	}
}

// PackState serializes the transaction into a signed token carried as the
// state parameter of the redirect to Discord.
func (m *Manager) PackState(state State) (string, error) {
	claims := m.baseClaims(useState, m.stateLifetime)
	claims["scopes"] = state.Scopes
	claims["redirect_uri"] = state.RedirectURI
	if state.ClientState != "" {
		claims["state"] = state.ClientState
	}
	if state.Nonce != "" {
		claims["nonce"] = state.Nonce
	}
	return m.codec.Encode(claims)
}

// UnpackState validates and recovers a transaction. Any failure, whether
// expired, tampered or malformed, surfaces as ErrMismatchingState with no
// further detail.
func (m *Manager) UnpackState(tokenString string) (*State, error) {
	claims, err := m.codec.Decode(tokenString,
		token.WithRequiredClaims("use", "scopes", "redirect_uri"))
	if err != nil || token.StringClaim(claims, "use") != useState {
		return nil, errors.ErrMismatchingState
	}

	return &State{
		Scopes:      token.StringsClaim(claims, "scopes"),
		ClientState: token.StringClaim(claims, "state"),
		Nonce:       token.StringClaim(claims, "nonce"),
		RedirectURI: token.StringClaim(claims, "redirect_uri"),
	}, nil
}

// WrapCode binds Discord's literal code to the transaction's scopes and nonce
// in a signed token handed to the relying party as the code parameter.
func (m *Manager) WrapCode(code WrappedCode) (string, error) {
	claims := m.baseClaims(useCode, m.codeLifetime)
	claims["code"] = code.Code
	claims["scopes"] = code.Scopes
	if code.Nonce != "" {
		claims["nonce"] = code.Nonce
	}
	return m.codec.Encode(claims)
}

// UnwrapCode validates and recovers a wrapped code at the token endpoint. Any
// failure surfaces as ErrInvalidGrant: a bad or expired code is a client
// error there, not a state mismatch.
func (m *Manager) UnwrapCode(tokenString string) (*WrappedCode, error) {
	claims, err := m.codec.Decode(tokenString,
		token.WithRequiredClaims("use", "code", "scopes"))
	if err != nil || token.StringClaim(claims, "use") != useCode {
		return nil, errors.ErrInvalidGrant
	}

	return &WrappedCode{
		Code:   token.StringClaim(claims, "code"),
		Scopes: token.StringsClaim(claims, "scopes"),
		Nonce:  token.StringClaim(claims, "nonce"),
	}, nil
}

// baseClaims stamps issuance and expiry and a random salt so two envelopes
// over identical data never serialize to the same token.
func (m *Manager) baseClaims(use string, lifetime time.Duration) jwt.MapClaims {
	now := NowTimeFunc()
	return jwt.MapClaims{
		"use":  use,
		"iat":  now.Unix(),
		"exp":  now.Add(lifetime).Unix(),
		"salt": uuid.New().String(),
	}
}
