package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"mathify/internal/session"
)

// Home sends the browser to the backend's Google sign-in.
func (h *Handler) Home(c *gin.Context) {
	c.Redirect(http.StatusFound, h.opts.LoginURL)
}

// Callback consumes the login redirect and routes to the matching
// dashboard, or to the fallback view when a claim is missing.
func (h *Handler) Callback(c *gin.Context) {
	out, err := session.Bootstrap(c.Request.Context(), h.opts.Store, c.Request.URL.Query())
	if err != nil {
		log.Error().Err(err).Msg("session bootstrap")
		c.Redirect(http.StatusFound, session.Fallback)
		return
	}
	if out.Session != nil {
		if err := h.opts.Cookie.Write(c, out.Session); err != nil {
			log.Error().Err(err).Msg("issue session cookie")
			_ = out.Session.Clear(c.Request.Context())
			c.Redirect(http.StatusFound, session.Fallback)
			return
		}
		log.Info().Str("sid", out.Session.ID).Bool("admin", out.Session.User.IsAdmin).Msg("signed in")
	}
	c.Redirect(http.StatusFound, out.Destination)
}

func (h *Handler) Fallback(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   "Could not authenticate user",
		"signIn":  h.opts.LoginURL,
		"message": "Please sign in again.",
	})
}

// Logout clears everything stored for the session without calling the
// backend and returns the browser to the application root.
func (h *Handler) Logout(c *gin.Context) {
	if sess, ok := h.opts.Cookie.Read(c); ok {
		if err := sess.Clear(c.Request.Context()); err != nil {
			log.Warn().Err(err).Str("sid", sess.ID).Msg("clear session")
		}
		h.opts.Views.Drop(sess.ID)
		if h.opts.Feed != nil {
			_, _ = h.opts.Feed.Drain(c.Request.Context(), sess.ID)
		}
	}
	h.opts.Cookie.Expire(c)
	c.Redirect(http.StatusSeeOther, h.opts.AppBaseURL)
}
