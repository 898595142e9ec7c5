package router

import (
	"net/http"
	"time"

	"podnest/internal/config"
	"podnest/internal/handlers"
	"podnest/internal/middleware"
	"podnest/internal/services"
	"podnest/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionName = "podnest_session"

// Services bundles what the HTTP layer calls into.
type Services struct {
	Identity  *services.IdentityService
	Graph     *services.SocialGraphService
	Pods      *services.PodService
	Bookmarks *services.BookmarkService
	Stories   *services.StoryService
	Ranking   handlers.RankScheduler
	Mail      handlers.InvitationSender
}

// New builds the engine with middleware and every route registered.
func New(cfg *config.Config, log *zap.Logger, svc Services, cache *utils.Cache) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.LoadUser(svc.Identity))

	RegisterRoutes(r, cfg, log, svc, cache)
	return r
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, log *zap.Logger, svc Services, cache *utils.Cache) {
	// Handlers
	oauthCfg := handlers.NewGoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.SiteURL)
	googleAuth := handlers.NewGoogleAuth(oauthCfg, svc.Identity, cfg.SiteURL, log)
	authHandler := handlers.NewAuthHandler(svc.Identity)
	userHandler := handlers.NewUserHandler(svc.Identity, svc.Graph, svc.Stories, svc.Pods)
	podHandler := handlers.NewPodHandler(svc.Pods, svc.Graph, svc.Stories, svc.Ranking, svc.Mail, cache)
	storyHandler := handlers.NewStoryHandler(svc.Stories, svc.Pods, svc.Ranking, cache)
	bookmarkHandler := handlers.NewBookmarkHandler(svc.Bookmarks, svc.Pods)
	seoHandler := handlers.NewSEOHandler(svc.Pods, svc.Stories, cfg.SiteURL)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/robots.txt", seoHandler.RobotsTxt)
	r.GET("/sitemap.xml", seoHandler.SitemapXML)

	// 登录 (Google OAuth)
	r.GET("/auth/google/login", googleAuth.Login)
	r.GET("/auth/google/callback", googleAuth.Callback)
	r.POST("/auth/logout", authHandler.Logout)

	// 公共路由 (Public Routes)
	api := r.Group("/api")
	{
		api.GET("/users/:id", userHandler.Profile)             // 用户主页
		api.GET("/users/:id/followers", userHandler.Followers) // 粉丝列表
		api.GET("/users/:id/following", userHandler.Following) // 关注列表
		api.GET("/users/:id/stories", userHandler.Stories)     // 用户的故事

		api.GET("/pods", podHandler.ListPublic)              // 公开 pod
		api.GET("/pods/search", podHandler.Search)           // 搜索 pod
		api.GET("/pods/:id", podHandler.Get)                 // pod 详情
		api.GET("/pods/:id/stories", podHandler.Stories)     // pod 内的故事
		api.GET("/pods/:id/followers", podHandler.Followers) // pod 成员

		api.GET("/stories/popular", storyHandler.Popular)         // 热门故事
		api.GET("/stories/:id", storyHandler.Get)                 // 故事详情
		api.GET("/stories/:id/reactions", storyHandler.Reactions) // 反应计数
	}

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/api")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/me", authHandler.Me)
		authorized.POST("/me/onboarding", authHandler.CompleteOnboarding)
		authorized.GET("/suggestions", userHandler.Suggestions)

		authorized.POST("/users/:id/follow", userHandler.Follow)
		authorized.DELETE("/users/:id/follow", userHandler.Unfollow)

		authorized.POST("/pods", podHandler.Create)
		authorized.GET("/pods/mine", podHandler.Mine)
		authorized.GET("/pods/followed", podHandler.Followed)
		authorized.GET("/pods/shared", podHandler.Shared)
		authorized.POST("/pods/:id/follow", podHandler.Follow)
		authorized.DELETE("/pods/:id/follow", podHandler.Unfollow)
		authorized.POST("/pods/:id/share", podHandler.Share)
		authorized.POST("/pods/:id/bookmark", bookmarkHandler.Bookmark)
		authorized.DELETE("/pods/:id/bookmark", bookmarkHandler.Unbookmark)
		authorized.POST("/pods/:id/archive", bookmarkHandler.Archive)
		authorized.DELETE("/pods/:id/archive", bookmarkHandler.Unarchive)
		authorized.GET("/bookmarks", bookmarkHandler.List)
		authorized.GET("/archive", bookmarkHandler.Archived)

		authorized.POST("/stories", storyHandler.Create)
		authorized.POST("/stories/:id/reactions/:kind", storyHandler.React)
		authorized.DELETE("/stories/:id/reactions/:kind", storyHandler.Unreact)
	}
}
