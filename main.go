package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	apirest "github.com/four20hq/clanhub/api/rest"
	"github.com/four20hq/clanhub/application"
	"github.com/four20hq/clanhub/audit"
	"github.com/four20hq/clanhub/cache"
	"github.com/four20hq/clanhub/config"
	dbadapter "github.com/four20hq/clanhub/db"
	"github.com/four20hq/clanhub/discord"
	mw "github.com/four20hq/clanhub/middleware"
	"github.com/four20hq/clanhub/model"
	"github.com/four20hq/clanhub/promotion"
	"github.com/four20hq/clanhub/rank"
	"github.com/four20hq/clanhub/resolve"
	"github.com/four20hq/clanhub/roster"
	"github.com/four20hq/clanhub/scheduler"
	"github.com/four20hq/clanhub/staff"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKeyHash == "" {
		logger.Warn("server.admin_key_hash is not set; admin endpoints are disabled")
	}
	if cfg.Security.ResolveSecret == cfg.Security.JWTSecret {
		log.Fatal("security: resolve_secret must differ from jwt_secret")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache ----
	c, err := cache.New(cache.Config{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Discord ----
	dclient := discord.NewClient(cfg.Discord, logger)
	dir := discord.NewDirectory(dclient, c, cfg.Discord.MemberCacheTTL, logger)

	// ---- Rank Ladder ----
	ladder, err := rank.NewLadder(cfg.Clan.Ranks)
	if err != nil {
		log.Fatalf("ranks: %v", err)
	}

	// ---- Services ----
	rosterSvc := roster.New(db, ladder, dir, cfg.Clan.Tag, logger)
	promoSvc := promotion.New(db, dclient, ladder, auditSvc,
		cfg.Clan.MinConfirmBatch, cfg.Discord.AnnounceChannel, logger)
	appSvc := application.New(db, dir, cfg.Discord.MemberRoleID, auditSvc, logger)
	tokens := resolve.NewTokens(cfg.Security.ResolveSecret, cfg.Security.ResolveTTL)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	sched.AddTicker("guild_sync", cfg.Clan.SyncInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		result, err := rosterSvc.Sync(ctx, time.Now())
		if err != nil {
			logger.Error("guild sync failed", zap.Error(err))
			return
		}
		logger.Info("guild sync finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("updated", result.Updated),
			zap.Int("archived", result.Archived))
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(dclient, dir, appSvc, c, cfg.Security, cfg.Discord, logger)
	rosterH := apirest.NewRosterHandler(rosterSvc, dir, tokens, auditSvc, logger)
	promoH := apirest.NewPromotionHandler(promoSvc, logger)
	appH := apirest.NewApplicationHandler(appSvc, logger)
	adminH := apirest.NewAdminHandler(db, c, rosterSvc, auditSvc, cfg.Clan.BanReportWindow, logger)

	authed := mw.Auth(cfg.Security, c)
	staffOnly := mw.RequireStaff(staff.TierAdmin, dir, cfg.Discord, logger)
	webdevOnly := mw.RequireStaff(staff.TierWebDev, dir, cfg.Discord, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.GET("/login", authH.Login)
		authG.GET("/callback", authH.Callback)
		authG.POST("/logout", authed, authH.Logout)
		authG.GET("/me", authed, authH.Me)

		appsG := api.Group("/applications")
		appsG.Use(authed)
		appsG.POST("", appH.Submit)
		appsG.GET("", staffOnly, appH.List)
		appsG.POST("/:id/accept", staffOnly, appH.Accept)
		appsG.POST("/:id/reject", staffOnly, appH.Reject)
		appsG.POST("/:id/revoke", staffOnly, appH.Revoke)

		rosterG := api.Group("/roster")
		rosterG.Use(authed, staffOnly)
		rosterG.GET("", rosterH.List)
		rosterG.POST("", rosterH.Add)
		rosterG.POST("/import", rosterH.Import)
		rosterG.POST("/import/csv", rosterH.ImportCSV)
		rosterG.PATCH("/:id", rosterH.Update)
		rosterG.POST("/:id/archive", rosterH.Archive)
		rosterG.DELETE("/:id", webdevOnly, rosterH.Delete)
		rosterG.POST("/resolve", rosterH.ResolveSearch)
		rosterG.POST("/:id/resolve", rosterH.ResolveApply)

		promoG := api.Group("/promotions")
		promoG.Use(authed, staffOnly)
		promoG.GET("", promoH.List)
		promoG.POST("/build", promoH.Build)
		promoG.POST("/confirm", promoH.Confirm)
		promoG.POST("/process", mw.Throttle(c, "promotion_process", cfg.Clan.PromoteWindow), promoH.Process)
		promoG.POST("/run", mw.Throttle(c, "promotion_run", cfg.Clan.PromoteWindow), promoH.Run)
		promoG.DELETE("", webdevOnly, promoH.Clear)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(cfg, authed, webdevOnly))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/sync", adminH.Sync)
		adminG.POST("/bans", adminH.ReportBan)
		adminG.GET("/audit", adminH.Audit)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
