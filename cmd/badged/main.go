package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/badgesmith/badgesmith/internal/providers"
	"github.com/badgesmith/badgesmith/pkg/badge"
	"github.com/badgesmith/badgesmith/pkg/cache"
	"github.com/badgesmith/badgesmith/pkg/credential"
	"github.com/badgesmith/badgesmith/pkg/dispatch"
	"github.com/badgesmith/badgesmith/pkg/logging"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fallback := logging.Setup(logging.DefaultConfig())
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	pool := credential.NewPool(credentialSpecs(cfg.Tokens), credential.Config{
		SecondaryLimitBackoff: cfg.SecondaryBackoff,
	}, logger)
	logger.Info().Int("credentials", pool.Size()).Msg("Credential pool ready")

	dispatcher, err := dispatch.New(pool, dispatch.Config{
		BaseURL:        cfg.UpstreamBaseURL,
		QueryURL:       cfg.UpstreamQueryURL,
		UserAgent:      cfg.UserAgent,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create dispatcher")
	}

	var cacheManager *cache.Manager
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		cacheManager = cache.NewManager(redisClient)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Badge cache enabled")
	} else {
		logger.Info().Msg("Badge cache disabled, rendering fresh on every request")
	}

	service := badge.NewService(dispatcher, cacheManager, logger)
	router := newRouter(service, redisClient, logger, providers.Stars{}, providers.Tags{})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Starting badge server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	if redisClient != nil {
		redisClient.Close()
	}
}

// config holds the runtime configuration of the badge server.
type config struct {
	Port             string
	LogLevel         string
	LogPretty        bool
	UpstreamBaseURL  string
	UpstreamQueryURL string
	UserAgent        string
	RequestTimeout   time.Duration
	Tokens           []string
	RedisAddr        string
	SecondaryBackoff time.Duration
}

// loadConfig reads configuration from badged.yaml (optional) and the
// environment, environment winning. All keys carry the BADGED_ prefix in the
// environment, e.g. BADGED_UPSTREAM_BASE_URL.
func loadConfig() (config, error) {
	v := viper.New()
	v.SetConfigName("badged")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/badged")

	v.SetEnvPrefix("badged")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("upstream_base_url", "https://api.github.com")
	v.SetDefault("upstream_query_url", "")
	v.SetDefault("user_agent", "badgesmith/1.0")
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("tokens", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("secondary_backoff", 60*time.Second)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config{}, err
		}
	}

	return config{
		Port:             v.GetString("port"),
		LogLevel:         v.GetString("log_level"),
		LogPretty:        v.GetBool("log_pretty"),
		UpstreamBaseURL:  v.GetString("upstream_base_url"),
		UpstreamQueryURL: v.GetString("upstream_query_url"),
		UserAgent:        v.GetString("user_agent"),
		RequestTimeout:   v.GetDuration("request_timeout"),
		Tokens:           splitTokens(v.GetString("tokens")),
		RedisAddr:        v.GetString("redis_addr"),
		SecondaryBackoff: v.GetDuration("secondary_backoff"),
	}, nil
}

func splitTokens(raw string) []string {
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// credentialSpecs builds the pool specs from configured tokens. Every token
// gets both surfaces; with no tokens the pool falls back to anonymous,
// resource-only access.
func credentialSpecs(tokens []string) []credential.Spec {
	specs := make([]credential.Spec, 0, len(tokens))
	for i, tok := range tokens {
		specs = append(specs, credential.Spec{
			ID:     "token-" + strconv.Itoa(i),
			Secret: tok,
			Scopes: []credential.Scope{credential.ScopeResource, credential.ScopeQuery},
		})
	}
	return specs
}
