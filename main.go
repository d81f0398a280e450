package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/openlearn/openlearn/backend/go-services/handlers"
	colhandler "github.com/openlearn/openlearn/backend/go-services/internal/collection/handler"
	colrepo "github.com/openlearn/openlearn/backend/go-services/internal/collection/repository"
	colservice "github.com/openlearn/openlearn/backend/go-services/internal/collection/service"
	"github.com/openlearn/openlearn/backend/go-services/internal/config"
	"github.com/openlearn/openlearn/backend/go-services/internal/cron"
	"github.com/openlearn/openlearn/backend/go-services/internal/database"
	exphandler "github.com/openlearn/openlearn/backend/go-services/internal/exploration/handler"
	exprepo "github.com/openlearn/openlearn/backend/go-services/internal/exploration/repository"
	expservice "github.com/openlearn/openlearn/backend/go-services/internal/exploration/service"
	"github.com/openlearn/openlearn/backend/go-services/internal/featureflag"
	"github.com/openlearn/openlearn/backend/go-services/internal/jobs"
	"github.com/openlearn/openlearn/backend/go-services/internal/learner"
	"github.com/openlearn/openlearn/backend/go-services/internal/oidc"
	"github.com/openlearn/openlearn/backend/go-services/internal/recommendations"
	"github.com/openlearn/openlearn/backend/go-services/internal/sessions"
	"github.com/openlearn/openlearn/backend/go-services/internal/skill"
	"github.com/openlearn/openlearn/backend/go-services/internal/snapshot"
	"github.com/openlearn/openlearn/backend/go-services/internal/storage"
	"github.com/openlearn/openlearn/backend/go-services/internal/story"
	"github.com/openlearn/openlearn/backend/go-services/internal/tokens"
	"github.com/openlearn/openlearn/backend/go-services/internal/users"
	"github.com/openlearn/openlearn/backend/go-services/internal/voiceartist"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
	"github.com/openlearn/openlearn/backend/go-services/pkg/metrics"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

var startTime = time.Now()

// backends holds the persistence layer. Every field is set, either to a
// Mongo-backed implementation or to its in-memory fallback.
type backends struct {
	collections  colrepo.Repository
	explorations exprepo.Repository
	snapshots    snapshot.Store
	stories      story.Repository
	topics       story.TopicRepository
	progress     learner.Repository
	skills       skill.Repository
	questions    skill.QuestionIndex
	jobs         jobs.Store
	users        users.UserRepository
	stats        users.StatsRepository
	flagRules    featureflag.RuleStore
	recs         recommendations.Store
}

func mongoBackends(db *mongo.Database) *backends {
	return &backends{
		collections:  colrepo.NewMongoRepo(db.Collection("collections"), db.Collection("collection_summaries")),
		explorations: exprepo.NewMongoRepo(db),
		snapshots:    snapshot.NewMongoStore(db.Collection("snapshots")),
		stories:      story.NewMongoRepo(db.Collection("stories")),
		topics:       story.NewMongoTopicRepo(db.Collection("topics")),
		progress:     learner.NewMongoRepository(db.Collection("learner_progress")),
		skills:       skill.NewMongoRepo(db.Collection("skills")),
		questions:    skill.NewMongoQuestionIndex(db.Collection("question_skill_links")),
		jobs:         jobs.NewMongoStore(db.Collection("job_runs")),
		users:        users.NewMongoUserRepository(db.Collection("users")),
		stats:        users.NewMongoStatsRepository(db.Collection("dashboard_stats")),
		flagRules:    featureflag.NewMongoRuleStore(db.Collection("feature_flag_rules"), db.Collection("feature_flag_commits")),
		recs:         recommendations.NewMongoStore(db.Collection("exploration_recommendations"), db.Collection("recommendation_settings")),
	}
}

func memoryBackends() *backends {
	return &backends{
		collections:  colrepo.NewMemoryRepo(),
		explorations: exprepo.NewMemoryRepo(),
		snapshots:    snapshot.NewMemoryStore(),
		stories:      story.NewMemoryRepo(),
		topics:       story.NewMemoryTopicRepo(),
		progress:     learner.NewMemoryRepository(),
		skills:       skill.NewMemoryRepo(),
		questions:    skill.NewMemoryQuestionIndex(),
		jobs:         jobs.NewMemoryStore(),
		users:        users.NewMemoryUserRepository(),
		stats:        users.NewMemoryStatsRepository(),
		flagRules:    featureflag.NewMemoryRuleStore(),
		recs:         recommendations.NewMemoryStore(),
	}
}

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mode=%s keycloak=%v mongo=%v redis=%v minio=%v",
		cfg.Server.Mode, cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors())

	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			rdb = nil
		} else {
			sessions.SetBlacklistClient(rdb)
			logger.Infof("connected to Redis %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	if cfg.RateLimit.Enabled {
		var lim middleware.Limiter = middleware.NewMemoryLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			lim = middleware.NewRedisLimiter(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		}
		logger.With("limiter", lim.Name()).Infof("rate limiting at %.1f rps, burst %d", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		r.Use(middleware.RateLimit(lim))
	}

	var client *mongo.Client
	be := memoryBackends()
	if cfg.MongoDB.URI != "" {
		client, err = database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Warnf("using in-memory repositories: %v", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			be = mongoBackends(client.Database(cfg.MongoDB.Database))
		}
	}

	var objects storage.ObjectStore = storage.NewMemoryStorage()
	if mcfg, ok := storage.FromConfig(cfg.MinIO); ok {
		ms, err := storage.NewMinIOStorage(ctx, mcfg)
		if err != nil {
			logger.Warnf("using in-memory object storage: %v", err)
		} else {
			objects = ms
		}
	}

	var sessionRepo sessions.Repository = sessions.NewMemoryRepository()
	switch {
	case rdb != nil:
		sessionRepo = sessions.NewRedisRepository(rdb, "session:")
	case client != nil:
		sessionRepo = sessions.NewMongoRepository(client.Database(cfg.MongoDB.Database).Collection("sessions"))
	}
	sessionsSvc := sessions.NewService(sessionRepo)
	userSvc := users.NewService(be.users)

	verifier := buildVerifier(ctx, cfg)
	auth := middleware.AuthMiddleware(verifier)
	optional := middleware.OptionalAuth(verifier)

	// feature flags
	var flagCache featureflag.ValueCache = featureflag.NewMemoryValueCache(cfg.FeatureFlags.CacheTTL)
	if rdb != nil {
		flagCache = featureflag.NewRedisValueCache(rdb, cfg.FeatureFlags.CacheTTL)
	}
	registry := featureflag.NewRegistry(be.flagRules, featureflag.DefaultFeatures()...)
	flags := featureflag.NewService(registry, flagCache, featureflag.ServerMode(cfg.Server.Mode))
	if cfg.FeatureFlags.RulesFile != "" {
		loader := featureflag.NewFileLoader(cfg.FeatureFlags.RulesFile, flags)
		if updated, err := loader.Load(ctx); err != nil {
			logger.Warnf("feature flag rules file: %v", err)
		} else if len(updated) > 0 {
			logger.Infof("feature flag rules loaded for %s", strings.Join(updated, ", "))
		}
		if cfg.FeatureFlags.Watch {
			go func() {
				if err := loader.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Errorf("feature flag watcher stopped: %v", err)
				}
			}()
		}
	}

	runner := jobs.NewRunner(be.jobs)

	colSvc := colservice.New(be.collections, be.snapshots, objects, cfg.MinIO.PresignTTL)
	expSvc := expservice.New(be.explorations, be.snapshots)
	skillSvc := skill.NewService(be.skills, be.snapshots, be.questions)
	storySvc := story.NewService(be.stories, be.topics, be.snapshots, learner.NewService(be.progress), expSvc, be.questions, flags)

	var drafts voiceartist.DraftStore = voiceartist.NewMemoryDraftStore(cfg.Drafts.TTL)
	if rdb != nil {
		drafts = voiceartist.NewRedisDraftStore(rdb, cfg.Drafts.TTL)
	}
	voiceSvc := voiceartist.New(expSvc, userSvc, drafts, objects, cfg.MinIO.PresignTTL)

	recSvc := recommendations.NewService(be.recs, expSvc)
	if err := recSvc.LoadTopicSimilarities(ctx, cfg.Recommendations.TopicSimilaritiesFile); err != nil {
		logger.Warnf("topic similarities: %v", err)
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{
			"mongo": cfg.MongoDB.URI == "" || client != nil,
			"redis": cfg.Redis.Host == "" || rdb != nil,
		}
		ready := deps["mongo"] == true && deps["redis"] == true
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	authHandler := handlers.NewAuthHandler(cfg, userSvc, sessionsSvc)
	authHandler.Register(r.Group("/"), auth)
	authHandler.RegisterAdmin(r, auth)

	colhandler.RegisterCollectionRoutes(r, colSvc, auth, optional)
	exphandler.RegisterExplorationRoutes(r, expSvc, auth, optional)
	voiceartist.RegisterRoutes(r, voiceSvc, auth)
	skill.RegisterRoutes(r, skillSvc, runner, auth)
	story.RegisterRoutes(r, storySvc, auth, optional)
	featureflag.RegisterRoutes(r, flags, auth)
	recommendations.RegisterRoutes(r, recSvc, auth)

	if cfg.Cron.Secret == "" {
		logger.Warn("CRON_SECRET is not set; cron endpoints are unauthenticated")
	}
	cron.RegisterRoutes(r, &cron.Handler{
		Runner:          runner,
		Recommendations: recSvc,
		Drafts:          voiceSvc,
		Snapshots:       be.snapshots,
		Collections:     colSvc,
		Explorations:    expSvc,
		Stats:           be.stats,
	}, middleware.CronGuard(cfg.Cron.Secret))
	cron.RegisterStatsRoutes(r, be.stats, auth)

	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting openlearn on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// buildVerifier accepts locally issued access tokens first, then Keycloak
// ID tokens. ALLOW_INSECURE_TOKEN=true adds an unverified fallback for
// integration environments.
func buildVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	chain := oidc.Chain{tokens.NewVerifier(cfg.JWT.Secret)}
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		chain = append(chain, oidc.NewKeycloakVerifier(ctx, cfg.Keycloak))
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
		logger.Warn("enabling insecure token verifier (integration mode)")
		chain = append(chain, oidc.NewInsecureVerifier())
	}
	return chain
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		h.Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
