package resolve

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenPurpose is fixed; resolve tokens are single-purpose capabilities and
// the purpose field must never be widened.
const tokenPurpose = "resolve"

var (
	ErrTokenInvalid = errors.New("resolve: invalid token")
	ErrTokenPurpose = errors.New("resolve: wrong token purpose")
)

// tokenClaims is the resolve-token payload. The token stands in for a raw
// Discord ID so the UI never sees one.
type tokenClaims struct {
	Purpose   string `json:"purpose"`
	DiscordID string `json:"discord_id"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies resolve tokens. The signing key is dedicated to
// this purpose and must not be shared with session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens creates a Tokens helper.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Sign issues a short-lived token carrying the candidate's Discord ID.
func (t *Tokens) Sign(discordID string) (string, error) {
	claims := &tokenClaims{
		Purpose:   tokenPurpose,
		DiscordID: discordID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify validates a token and returns the Discord ID it stands for.
func (t *Tokens) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return t.secret, nil
	})
	if err != nil {
		return "", ErrTokenInvalid
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return "", ErrTokenInvalid
	}
	if claims.Purpose != tokenPurpose {
		return "", ErrTokenPurpose
	}
	return claims.DiscordID, nil
}
