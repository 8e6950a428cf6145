// Package token provides the signed-token primitive every other component
// rides on: transaction state, wrapped authorization codes, access tokens and
// ID tokens are all encoded and verified here.
package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/snowgate-dev/snowgate/internal/errors"
	"github.com/snowgate-dev/snowgate/token/keys"
)

// KeySource supplies the active signing key.
type KeySource interface {
	SigningKey() (*keys.KeyPair, error)
}

// Codec signs and verifies RS256 JWTs with the active signing key. Claims are
// integrity-protected, not confidential.
type Codec struct {
	keySource KeySource
}

func NewCodec(keySource KeySource) *Codec {
	return &Codec{keySource: keySource}
}

// Encode signs the given claims with the active key.
func (c *Codec) Encode(claims jwt.MapClaims) (string, error) {
	keyPair, err := c.keySource.SigningKey()
	if err != nil {
		return "", err
	}
	return keys.NewKeyPairSigner(keyPair).Sign(claims)
}

type decodeExpectations struct {
	issuer         string
	requiredClaims []string
}

type DecodeOption func(*decodeExpectations)

// WithIssuer requires an exact iss match.
func WithIssuer(issuer string) DecodeOption {
	return func(e *decodeExpectations) {
		e.issuer = issuer
	}
}

// WithRequiredClaims requires the named claims to be present and non-empty.
func WithRequiredClaims(names ...string) DecodeOption {
	return func(e *decodeExpectations) {
		e.requiredClaims = append(e.requiredClaims, names...)
	}
}

// Decode verifies the signature and the caller's claim expectations. Only
// RS256 under the known key is accepted; expiry is always enforced. Every
// failure maps to ErrInvalidToken so callers cannot tell expired from
// tampered from malformed.
func (c *Codec) Decode(tokenString string, opts ...DecodeOption) (jwt.MapClaims, error) {
	var expectations decodeExpectations
	for _, opt := range opts {
		opt(&expectations)
	}

	keyPair, err := c.keySource.SigningKey()
	if err != nil {
		return nil, err
	}
	signer := keys.NewKeyPairSigner(keyPair)

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{keys.RS256}),
		jwt.WithExpirationRequired(),
	}
	if expectations.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(expectations.issuer))
	}

	parsed, err := jwt.Parse(tokenString, signer.GetVerificationKey, parserOpts...)
	if err != nil || !parsed.Valid {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "token verification failed")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "unexpected claims type")
	}

	for _, name := range expectations.requiredClaims {
		value, present := claims[name]
		if !present || value == nil {
			return nil, errors.Wrapf(errors.ErrInvalidToken, "missing required claim %q", name)
		}
		if s, isString := value.(string); isString && s == "" {
			return nil, errors.Wrapf(errors.ErrInvalidToken, "empty required claim %q", name)
		}
	}

	return claims, nil
}

// StringsClaim reads a claim decoded as a JSON array into a string slice.
func StringsClaim(claims jwt.MapClaims, name string) []string {
	raw, ok := claims[name].([]interface{})
	if !ok {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

// StringClaim reads a string claim, returning "" when absent.
func StringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}
