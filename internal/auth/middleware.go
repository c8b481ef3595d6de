package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mathify/internal/session"
)

const sessionKey = "session"

// Cookie issues and reads the signed session cookie.
type Cookie struct {
	Name       string
	SigningKey string
	Issuer     string
	TTL        time.Duration
	Secure     bool
	Store      session.Store
}

// Write sets the cookie for sess on the response.
func (ck Cookie) Write(c *gin.Context, sess *session.Session) error {
	value, _, err := Issue(sess.ID, sess.User, ck.Issuer, ck.SigningKey, ck.TTL)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.Name, value, int(ck.TTL.Seconds()), "/", "", ck.Secure, true)
	return nil
}

// Expire removes the cookie from the browser.
func (ck Cookie) Expire(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.Name, "", -1, "/", "", ck.Secure, true)
}

// Read returns the session named by the request cookie, if valid.
func (ck Cookie) Read(c *gin.Context) (*session.Session, bool) {
	raw, err := c.Cookie(ck.Name)
	if err != nil || raw == "" {
		return nil, false
	}
	claims, err := Parse(raw, ck.SigningKey, ck.Issuer)
	if err != nil {
		return nil, false
	}
	return session.New(claims.SessionID, claims.User(), ck.Store), true
}

// RateKey charges signed-in requests to their session, others to their IP.
func (ck Cookie) RateKey(c *gin.Context) string {
	if sess, ok := ck.Read(c); ok {
		return "sid:" + sess.ID
	}
	return ""
}

// RequireSession rejects requests without a valid session cookie.
func (ck Cookie) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := ck.Read(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RequireAdmin must run after RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := Current(c)
		if sess == nil || !sess.User.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

// Current returns the session stored by RequireSession.
func Current(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}
