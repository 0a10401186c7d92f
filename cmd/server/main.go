package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"thinkproxy/internal/auth"
	"thinkproxy/internal/bus"
	"thinkproxy/internal/config"
	"thinkproxy/internal/configstore"
	"thinkproxy/internal/handler"
	"thinkproxy/internal/httpclient"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		os.Exit(2)
	}

	if level, lerr := zerolog.ParseLevel(cfg.Server.LogLevel); lerr == nil {
		zerolog.SetGlobalLevel(level)
	}

	store, err := configstore.Open(cfg.Server.ConfigPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Server.ConfigPath).Msg("failed to load profile/proxy document")
		os.Exit(2)
	}

	httpclient.SetDefaultTimeout(cfg.Server.UpstreamTimeout)
	thinkingBus := bus.New(bus.DefaultCapacity)

	router := handler.NewRouter(store, thinkingBus, cfg.Server.UpstreamTimeout)
	configAPI := handler.NewConfigAPI(store)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	engine.GET("/health", router.Health)

	authMiddleware := auth.Middleware(func() string { return store.ProxySettings().APIKey })

	v1 := engine.Group("/v1")
	v1.Use(authMiddleware)
	{
		v1.POST("/chat/completions", router.ChatCompletions)
		v1.GET("/models", router.ListModels)
		v1.GET("/thinking/stream", router.ThinkingStream)

		cfgRoutes := v1.Group("/config")
		{
			cfgRoutes.GET("/reasoning/types", configAPI.ReasoningTypes)
			cfgRoutes.GET("/proxy", configAPI.GetProxySettings)
			cfgRoutes.PUT("/proxy", configAPI.PutProxySettings)
			cfgRoutes.GET("/profiles", configAPI.ListProfiles)
			cfgRoutes.POST("/profiles", configAPI.CreateProfile)
			cfgRoutes.POST("/profiles/test", configAPI.TestProfile)
			cfgRoutes.GET("/profiles/:id", configAPI.GetProfile)
			cfgRoutes.PUT("/profiles/:id", configAPI.UpdateProfile)
			cfgRoutes.DELETE("/profiles/:id", configAPI.DeleteProfile)
			cfgRoutes.PUT("/default-profile", configAPI.SetDefaultProfile)
			cfgRoutes.GET("/export", configAPI.Export)
			cfgRoutes.POST("/import", configAPI.Import)
		}
	}

	// The persisted document's port wins over the bootstrap default; a PUT
	// /v1/config/proxy that changes it reports restart_required because
	// this bind happens once.
	port := cfg.Server.Port
	if p := store.ProxySettings().Port; p != 0 {
		port = p
	}
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     engine,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// WriteTimeout is intentionally 0: streaming responses have no
		// fixed upper bound, only the per-upstream-call timeout in
		// httpclient.
	}

	go func() {
		log.Info().Str("addr", addr).Str("config", cfg.Server.ConfigPath).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server stopped")
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		log.Info().
			Int("status", c.Writer.Status()).
			Str("method", c.Request.Method).
			Str("path", path).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}
