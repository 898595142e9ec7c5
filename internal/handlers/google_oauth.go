package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"podnest/internal/middleware"
	"podnest/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateKey     = "oauth_state"
)

// NewGoogleOAuthConfig 构造 Google OAuth 配置
func NewGoogleOAuthConfig(clientID, clientSecret, siteURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  siteURL + "/auth/google/callback",
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// GoogleUserInfo Google 用户信息结构
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleAuth signs users in with Google. The callback is the only caller of
// ResolveOrCreateUser.
type GoogleAuth struct {
	oauth       *oauth2.Config
	identity    *services.IdentityService
	siteURL     string
	userInfoURL string
	log         *zap.Logger
}

func NewGoogleAuth(cfg *oauth2.Config, identity *services.IdentityService, siteURL string, log *zap.Logger) *GoogleAuth {
	return &GoogleAuth{
		oauth:       cfg,
		identity:    identity,
		siteURL:     siteURL,
		userInfoURL: googleUserInfoURL,
		log:         log,
	}
}

// generateStateToken 生成随机 state token
func generateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Login 发起 Google OAuth 登录
func (h *GoogleAuth) Login(c *gin.Context) {
	state, err := generateStateToken()
	if err != nil {
		respondError(c, errors.Wrap(err, "generate oauth state"))
		return
	}

	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

// Callback 处理 Google OAuth 回调
func (h *GoogleAuth) Callback(c *gin.Context) {
	session := sessions.Default(c)
	savedState, _ := session.Get(oauthStateKey).(string)
	if savedState == "" || c.Query("state") != savedState {
		badRequest(c, "invalid oauth state")
		return
	}
	session.Delete(oauthStateKey)

	code := c.Query("code")
	if code == "" {
		badRequest(c, "missing authorization code")
		return
	}

	ctx := c.Request.Context()
	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.log.Warn("oauth exchange failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}

	info, err := h.fetchUserInfo(c, token)
	if err != nil {
		h.log.Warn("fetch google userinfo failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "could not read google profile"})
		return
	}
	if !info.VerifiedEmail {
		badRequest(c, "google email is not verified")
		return
	}

	user, err := h.identity.ResolveOrCreateUser(ctx, info.Email, info.Name, info.Picture)
	if err != nil {
		respondError(c, err)
		return
	}

	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}

	next := h.siteURL + "/"
	if !user.Onboarded {
		next = h.siteURL + "/onboarding"
	}
	c.Redirect(http.StatusFound, next)
}

func (h *GoogleAuth) fetchUserInfo(c *gin.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := h.oauth.Client(c.Request.Context(), token)
	resp, err := client.Get(h.userInfoURL)
	if err != nil {
		return nil, errors.Wrap(err, "get userinfo")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrap(err, "decode userinfo")
	}
	return &info, nil
}
