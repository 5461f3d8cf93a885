package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its
// expiry.  Access tokens are short-lived and sent in the
// Authorization header, or as a token query parameter when opening
// the WebSocket channel.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Identity is the authenticated principal carried by a valid token.
type Identity struct {
	UserID   uint64
	Username string
}

// NewAccessToken builds and signs an HS256 JWT for a user.  Claims:
// subject (sub), username, expiration (exp) and issued at (iat).
func NewAccessToken(secret string, userID uint64, username string, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

var errInvalidToken = errors.New("invalid token")

// ParseAccessToken validates a raw token string and extracts the
// identity claims.  It rejects tokens signed with anything but HMAC.
func ParseAccessToken(secret, raw string) (Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, errInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errInvalidToken
	}
	id := Identity{}
	switch sub := claims["sub"].(type) {
	case float64:
		id.UserID = uint64(sub)
	default:
		return Identity{}, errInvalidToken
	}
	if name, ok := claims["username"].(string); ok {
		id.Username = name
	}
	return id, nil
}
