// Package app builds the service from configuration: clients, collections,
// domain services and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/deskhub/deskhub/handlers"
	"github.com/deskhub/deskhub/internal/accounting"
	"github.com/deskhub/deskhub/internal/assistant"
	"github.com/deskhub/deskhub/internal/calendar"
	"github.com/deskhub/deskhub/internal/config"
	"github.com/deskhub/deskhub/internal/contacts"
	"github.com/deskhub/deskhub/internal/dashboard"
	"github.com/deskhub/deskhub/internal/database"
	"github.com/deskhub/deskhub/internal/employees"
	"github.com/deskhub/deskhub/internal/files"
	"github.com/deskhub/deskhub/internal/mail"
	"github.com/deskhub/deskhub/internal/oidc"
	"github.com/deskhub/deskhub/internal/projects"
	"github.com/deskhub/deskhub/internal/rituals"
	"github.com/deskhub/deskhub/internal/sessions"
	"github.com/deskhub/deskhub/internal/storage"
	"github.com/deskhub/deskhub/internal/store"
	"github.com/deskhub/deskhub/internal/tokens"
	"github.com/deskhub/deskhub/internal/users"
	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/deskhub/deskhub/pkg/metrics"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const mongoAttempts = 5

var registerMetrics sync.Once

// App owns the long-lived clients and the router.
type App struct {
	cfg     *config.Config
	router  *gin.Engine
	started time.Time

	redis   *redis.Client
	mongo   *mongo.Client
	db      *mongo.Database
	objects storage.ObjectStore

	idTokens  middleware.Verifier
	users     *users.Service
	sessions  *sessions.Service
	rituals   *rituals.Service
	scheduler *rituals.Scheduler
}

// collection opens name in MongoDB, or in memory when no database is connected.
func collection[E any, P interface {
	*E
	store.Record
}](db *mongo.Database, name string) store.Collection[E] {
	if db == nil {
		return store.NewMemoryCollection[E, P]()
	}
	return store.NewMongoCollection[E, P](db, name)
}

// New connects the configured backends and assembles the service. Optional
// backends that fail to connect are logged and replaced by in-process versions,
// except MongoDB in production.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg, started: time.Now()}
	registerMetrics.Do(func() { metrics.RegisterCollectors(prometheus.DefaultRegisterer) })

	if err := a.connect(ctx); err != nil {
		a.Close(context.Background())
		return nil, err
	}
	if err := a.build(ctx); err != nil {
		a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.cfg
	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = client.Close()
		} else {
			a.redis = client
			sessions.SetRevocationClient(client)
			logger.Infof("connected to Redis at %s", addr)
		}
	}

	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoAttempts)
		if err != nil {
			if cfg.Server.Production() {
				return err
			}
			logger.Warnf("%v; keeping collections in memory", err)
		} else {
			a.mongo = client
			a.db = client.Database(cfg.MongoDB.Database)
			logger.Infof("connected to MongoDB database %s", cfg.MongoDB.Database)
		}
	}

	if cfg.MinIO.Endpoint != "" {
		s, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			if cfg.Server.Production() {
				return fmt.Errorf("object storage: %w", err)
			}
			logger.Warnf("object storage unavailable (%v); keeping files in memory", err)
		} else {
			a.objects = s
		}
	}
	if a.objects == nil {
		a.objects = storage.NewMemoryStorage()
	}

	if cfg.Keycloak.URL != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.Keycloak)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			a.idTokens = ver
		}
	}
	if a.idTokens == nil && strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
		logger.Warn("enabling insecure OIDC verifier (integration mode)")
		a.idTokens = oidc.NewInsecureVerifier()
	}
	return nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	var userRepo users.UserRepository = users.NewMemoryUserRepository()
	var sessionRepo sessions.Repository = sessions.NewMemoryRepository()
	if a.db != nil {
		userRepo = users.NewMongoUserRepository(a.db.Collection("users"))
		sessionRepo = sessions.NewMongoRepository(a.db.Collection("sessions"))
	}
	if a.redis != nil {
		sessionRepo = sessions.NewRedisRepository(a.redis, "session:")
	}
	a.users = users.NewService(userRepo)
	a.sessions = sessions.NewService(sessionRepo)

	acctStores := accounting.MemoryStores()
	if a.db != nil {
		acctStores = accounting.MongoStores(a.db)
	}
	var seq accounting.Sequencer
	if a.redis != nil {
		seq = accounting.NewRedisSequencer(a.redis, acctStores.Invoices)
	}
	acctSvc := accounting.NewService(acctStores, seq)

	tasks := collection[calendar.Task](a.db, "tasks")
	calSvc := calendar.NewService(tasks)
	contactSvc := contacts.NewService(collection[contacts.Contact](a.db, "contacts"), acctSvc)
	projectSvc := projects.NewService(collection[projects.Project](a.db, "projects"))
	employeeSvc := employees.NewService(collection[employees.Employee](a.db, "employees"))
	a.rituals = rituals.NewService(
		collection[rituals.Settings](a.db, "ritual_settings"),
		collection[rituals.Run](a.db, "ritual_runs"),
		tasks,
		cfg.Rituals.DefaultHorizon,
	)
	fileSvc := files.NewService(
		collection[files.Folder](a.db, "folders"),
		collection[files.FileItem](a.db, "files"),
		a.objects,
		cfg.Files.URLTTL,
	)
	mailSvc := mail.NewService(collection[mail.Message](a.db, "mail_messages"), mail.NewMailer(cfg.Mail), cfg.Mail.From)

	gen, err := assistant.NewGenerator(ctx, cfg.GenAI)
	if err != nil {
		logger.Warnf("assistant disabled: %v", err)
	}
	assistantSvc := assistant.NewService(gen, calSvc)
	dash := dashboard.NewService(contactSvc, calSvc, acctSvc, fileSvc)

	if cfg.Rituals.Schedule != "" {
		sched, err := rituals.NewScheduler(a.rituals, cfg.Rituals.Schedule, time.UTC)
		if err != nil {
			return err
		}
		a.scheduler = sched
	}

	r := a.baseRouter()
	api := r.Group("/api/v1", middleware.AuthMiddleware(a.apiVerifier()), middleware.TenantMiddleware())
	api.GET("/me", a.me)
	contacts.NewHandler(contactSvc).Register(api)
	accounting.NewHandler(acctSvc).Register(api)
	projects.NewHandler(projectSvc).Register(api)
	employees.NewHandler(employeeSvc).Register(api)
	calendar.NewHandler(calSvc).Register(api)
	rituals.NewHandler(a.rituals).Register(api)
	files.NewHandler(fileSvc, cfg.Files.MaxUploadSize).Register(api)
	mail.NewHandler(mailSvc).Register(api)
	assistant.NewHandler(assistantSvc).Register(api)
	dashboard.NewHandler(dash).Register(api)
	a.router = r
	return nil
}

// apiVerifier accepts access tokens issued by /auth/login first, then
// provider ID tokens.
func (a *App) apiVerifier() middleware.Verifier {
	var chain middleware.ChainVerifier
	if a.cfg.JWT.Secret != "" {
		chain = append(chain, tokens.NewVerifier(a.cfg.JWT.Secret))
	}
	if a.idTokens != nil {
		chain = append(chain, a.idTokens)
	}
	return chain
}

func (a *App) baseRouter() *gin.Engine {
	if a.cfg.Server.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.CORS(), gin.Recovery(), middleware.RequestLogger(), middleware.Metrics())

	if rl := a.cfg.RateLimit; rl.Enabled {
		if rl.UseRedis && a.redis != nil {
			r.Use(middleware.RedisRateLimitMiddleware(a.redis, rl.RPS, rl.Burst, time.Duration(rl.WindowSeconds)*time.Second))
		} else {
			r.Use(middleware.RateLimitMiddleware(rl.RPS, rl.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", a.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)
	handlers.NewAuthHandler(a.cfg, a.users, a.sessions, a.idTokens).Register(r.Group("/"))
	return r
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ready reports 200 only when every configured dependency answers.
func (a *App) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := map[string]bool{}
	deps["storage"] = true
	if p, ok := a.objects.(pinger); ok {
		deps["storage"] = p.Ping(ctx) == nil
	}
	deps["database"] = a.mongo == nil || a.mongo.Ping(ctx, nil) == nil
	deps["redis"] = true
	if a.redis != nil {
		deps["redis"] = a.redis.Ping(ctx).Err() == nil
	} else if a.cfg.Redis.Host != "" && a.cfg.RateLimit.UseRedis {
		deps["redis"] = false
	}
	deps["oidc"] = a.cfg.Keycloak.URL == "" || a.idTokens != nil

	status, code := "ready", http.StatusOK
	for _, ok := range deps {
		if !ok {
			status, code = "not_ready", http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(a.started).Round(time.Second).String()})
}

func (a *App) me(c *gin.Context) {
	claims := middleware.Claims(c)
	tenant, _ := middleware.Identity(c)
	u, err := a.users.UpsertFromClaims(c.Request.Context(), claims)
	if err != nil {
		logger.Errorf("me: upsert user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "tenant": tenant})
}

func (a *App) Router() http.Handler { return a.router }

func (a *App) Rituals() *rituals.Service { return a.rituals }

// EnsureIndexes creates the MongoDB indexes. It is a no-op without a database.
func (a *App) EnsureIndexes(ctx context.Context) error {
	if a.db == nil {
		return errors.New("no MongoDB database configured")
	}
	return database.EnsureIndexes(ctx, a.db)
}

// Serve runs the HTTP server and the ritual scheduler until ctx is cancelled,
// then shuts both down.
func (a *App) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%s", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
	if a.scheduler != nil {
		a.scheduler.Start()
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if a.scheduler != nil {
		a.scheduler.Stop(shutdownCtx)
	}
	return srv.Shutdown(shutdownCtx)
}

// Close releases the backend clients.
func (a *App) Close(ctx context.Context) {
	if a.redis != nil {
		sessions.SetRevocationClient(nil)
		_ = a.redis.Close()
	}
	if a.mongo != nil {
		_ = a.mongo.Disconnect(ctx)
	}
}
