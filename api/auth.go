package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"ventas/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionCookie = "session"
	stateCookie   = "oauth_state"
	identityKey   = "identity"
)

// IdentityProvider is the third-party login used to authenticate users.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (*auth.Identity, error)
}

type authHandler struct {
	sessions      *auth.Sessions
	provider      IdentityProvider
	secureCookies bool
	logger        *zap.Logger
}

// RequireAuth accepts the session cookie or an "Authorization: Bearer" header
// and stores the identity in the context. The ledger owner is always taken
// from here, never from the request body.
func (h *authHandler) RequireAuth(c *gin.Context) {
	token, _ := c.Cookie(sessionCookie)
	if token == "" {
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := h.sessions.Parse(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.Set(identityKey, id)
	c.Next()
}

func identityFrom(c *gin.Context) *auth.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(*auth.Identity)
	return id
}

func ownerFrom(c *gin.Context) string {
	if id := identityFrom(c); id != nil {
		return id.Email
	}
	return ""
}

func (h *authHandler) handleLogin(c *gin.Context) {
	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google login is not configured"})
		return
	}

	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int((10 * time.Minute).Seconds()), "/auth", "", h.secureCookies, true)
	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

func (h *authHandler) handleCallback(c *gin.Context) {
	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google login is not configured"})
		return
	}

	expected, _ := c.Cookie(stateCookie)
	c.SetCookie(stateCookie, "", -1, "/auth", "", h.secureCookies, true)
	if expected == "" || c.Query("state") != expected {
		h.logger.Warn("oauth state mismatch", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid oauth state"})
		return
	}

	id, err := h.provider.Identify(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.logger.Error("authentication failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	token, err := h.sessions.Issue(*id)
	if err != nil {
		h.logger.Error("failed to issue session", zap.String("email", id.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	h.setSession(c, token, int(h.sessions.TTL().Seconds()))
	h.logger.Info("user authenticated", zap.String("email", id.Email))
	c.Redirect(http.StatusFound, "/")
}

func (h *authHandler) handleLogout(c *gin.Context) {
	h.setSession(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *authHandler) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, identityFrom(c))
}

func (h *authHandler) setSession(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, maxAge, "/", "", h.secureCookies, true)
}
