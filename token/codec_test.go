package token_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/snowgate-dev/snowgate/internal/errors"
	"github.com/snowgate-dev/snowgate/token"
	"github.com/snowgate-dev/snowgate/token/keystore"
)

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()
	return token.NewCodec(keystore.New(filepath.Join(t.TempDir(), "signing_key.json")))
}

func futureClaims(extra jwt.MapClaims) jwt.MapClaims {
	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	return claims
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	encoded, err := codec.Encode(futureClaims(jwt.MapClaims{
		"sub":    "190",
		"scopes": []string{"openid", "profile"},
	}))
	require.NoError(t, err)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, "190", decoded["sub"])
	require.Equal(t, []string{"openid", "profile"}, token.StringsClaim(decoded, "scopes"))
}

func TestCodec_TamperDetection(t *testing.T) {
	codec := newTestCodec(t)

	encoded, err := codec.Encode(futureClaims(jwt.MapClaims{"sub": "190"}))
	require.NoError(t, err)

	// Flip one byte in the payload segment.
	parts := strings.Split(encoded, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = codec.Decode(tampered)
	require.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestCodec_Expiry(t *testing.T) {
	codec := newTestCodec(t)

	encoded, err := codec.Encode(jwt.MapClaims{
		"sub": "190",
		"iat": time.Now().Add(-10 * time.Minute).Unix(),
		"exp": time.Now().Add(-5 * time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = codec.Decode(encoded)
	require.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestCodec_ExpiryRequired(t *testing.T) {
	codec := newTestCodec(t)

	encoded, err := codec.Encode(jwt.MapClaims{"sub": "190"})
	require.NoError(t, err)

	_, err = codec.Decode(encoded)
	require.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestCodec_IssuerExpectation(t *testing.T) {
	codec := newTestCodec(t)

	encoded, err := codec.Encode(futureClaims(jwt.MapClaims{"iss": "https://auth.example.com"}))
	require.NoError(t, err)

	t.Run("matching issuer", func(t *testing.T) {
		_, err := codec.Decode(encoded, token.WithIssuer("https://auth.example.com"))
		require.NoError(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := codec.Decode(encoded, token.WithIssuer("https://other.example.com"))
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}

func TestCodec_RequiredClaims(t *testing.T) {
	codec := newTestCodec(t)

	encoded, err := codec.Encode(futureClaims(jwt.MapClaims{"sub": "190", "empty": ""}))
	require.NoError(t, err)

	t.Run("present claim", func(t *testing.T) {
		_, err := codec.Decode(encoded, token.WithRequiredClaims("sub"))
		require.NoError(t, err)
	})

	t.Run("missing claim", func(t *testing.T) {
		_, err := codec.Decode(encoded, token.WithRequiredClaims("nonce"))
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("empty string claim", func(t *testing.T) {
		_, err := codec.Decode(encoded, token.WithRequiredClaims("empty"))
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}

func TestCodec_RejectsAlgorithmConfusion(t *testing.T) {
	codec := newTestCodec(t)

	t.Run("HS256", func(t *testing.T) {
		hmacToken := jwt.NewWithClaims(jwt.SigningMethodHS256, futureClaims(jwt.MapClaims{"sub": "190"}))
		signed, err := hmacToken.SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = codec.Decode(signed)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("none", func(t *testing.T) {
		noneToken := jwt.NewWithClaims(jwt.SigningMethodNone, futureClaims(jwt.MapClaims{"sub": "190"}))
		signed, err := noneToken.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = codec.Decode(signed)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := codec.Decode("not.a.jwt")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}
