package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mathify/internal/model"
)

// Claims is the payload of the session cookie: the session id plus the
// user copy established at login.
type Claims struct {
	SessionID string `json:"sid"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Avatar    string `json:"avatar,omitempty"`
	Admin     bool   `json:"admin"`
	jwt.RegisteredClaims
}

// User rebuilds the user carried by the claims.
func (c Claims) User() model.User {
	return model.User{ID: c.Subject, Name: c.Name, Email: c.Email, Avatar: c.Avatar, IsAdmin: c.Admin}
}

// Issue signs a session cookie value for sid and user.
func Issue(sid string, user model.User, issuer, key string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		SessionID: sid,
		Name:      user.Name,
		Email:     user.Email,
		Avatar:    user.Avatar,
		Admin:     user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates a cookie value and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid session cookie")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return Claims{}, errors.New("session cookie missing identity")
	}
	return *claims, nil
}
