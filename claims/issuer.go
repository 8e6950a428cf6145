package claims

import (
	"context"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/snowgate-dev/snowgate/authflow"
	"github.com/snowgate-dev/snowgate/discord"
	"github.com/snowgate-dev/snowgate/token"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// TokenPair is the signed access and ID token for one authentication event.
// Both share the same subject and issuance time; only the audience differs.
type TokenPair struct {
	AccessToken string
	IDToken     string
	ExpiresAt   int64
}

// Issuer assembles and signs the token pair. Any upstream failure while
// fetching attributes aborts issuance; no partial token is ever produced.
type Issuer struct {
	codec         *token.Codec
	issuerURL     string
	userinfoURL   string
	lifetime      time.Duration
	guildsEnabled bool
}

func NewIssuer(codec *token.Codec, issuerURL, userinfoURL string, lifetime time.Duration, guildsEnabled bool) *Issuer {
	return &Issuer{
		codec:         codec,
		issuerURL:     issuerURL,
		userinfoURL:   userinfoURL,
		lifetime:      lifetime,
		guildsEnabled: guildsEnabled,
	}
}

// Issue fetches the user's attributes from Discord, maps the granted scopes
// to claims, and signs the access/ID token pair.
func (i *Issuer) Issue(ctx context.Context, client *discord.Client, discordToken *oauth2.Token, code *authflow.WrappedCode) (*TokenPair, error) {
	user, err := client.FetchUser(ctx, discordToken)
	if err != nil {
		return nil, err
	}

	resolved := MapScopes(code.Scopes, user)

	if i.guildsEnabled && HasScope(code.Scopes, "groups") {
		guilds, err := client.FetchGuilds(ctx, discordToken)
		if err != nil {
			return nil, err
		}
		groups := make([]string, 0, len(guilds))
		for _, guild := range guilds {
			groups = append(groups, guild.ID)
		}
		resolved["groups"] = groups
	}

	now := NowTimeFunc()
	expiry := now.Add(i.lifetime)

	accessClaims := jwtlib.MapClaims{
		"iss": i.issuerURL,
		"aud": i.userinfoURL,
		"iat": now.Unix(),
		"exp": expiry.Unix(),
		"jti": uuid.New().String(),
	}
	for name, value := range resolved {
		accessClaims[name] = value
	}

	identityClaims := jwtlib.MapClaims{}
	for name, value := range accessClaims {
		identityClaims[name] = value
	}
	identityClaims["aud"] = client.ClientID()
	identityClaims["jti"] = uuid.New().String()
	if code.Nonce != "" {
		identityClaims["nonce"] = code.Nonce
	}

	accessToken, err := i.codec.Encode(accessClaims)
	if err != nil {
		return nil, err
	}
	identityToken, err := i.codec.Encode(identityClaims)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken: accessToken,
		IDToken:     identityToken,
		ExpiresAt:   expiry.Unix(),
	}, nil
}
