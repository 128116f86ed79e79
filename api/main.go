package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"kubegarden/api/auth"
	"kubegarden/api/backend"
	"kubegarden/api/config"
	gcron "kubegarden/api/cron"
	"kubegarden/api/console"
	"kubegarden/api/handler"
	"kubegarden/api/hub"
	"kubegarden/api/k8s"
	"kubegarden/api/logger"
	"kubegarden/api/settings"
	"kubegarden/api/storage"
	"kubegarden/api/store"
)

var Version = "dev"

func main() {
	cfg := config.Load()

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var api *backend.Client
	var deployer console.Backend
	if cfg.Detached() {
		log.Warn("GARDEN_API_URL not set, running detached: backend endpoints answer 503")
	} else {
		api = backend.New(cfg.APIURL)
		api.Token = cfg.APIToken
		deployer = api
		log.Info("deployment backend configured", zap.String("url", cfg.APIURL))
	}

	var db *store.DB
	var journal console.Journal
	if cfg.DatabaseURL != "" {
		db, err = store.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database", zap.Error(err))
		}
		defer db.Close()
		if err := store.Migrate(db); err != nil {
			log.Fatal("migration", zap.Error(err))
		}
		journal = db
		log.Info("operator journal enabled")
	}

	var kube *k8s.Client
	if cfg.KubeEnabled {
		kube, err = k8s.NewClient()
		if err != nil {
			log.Warn("k8s unavailable, pod counts come from the backend only", zap.Error(err))
			kube = nil
		}
	}

	var s3Client *storage.Client
	if cfg.S3Endpoint != "" {
		s3Client, err = storage.NewClient(storage.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = s3Client.EnsureBucket(ctx)
			cancel()
		}
		if err != nil {
			log.Warn("S3 storage unavailable, history export disabled", zap.Error(err))
			s3Client = nil
		} else {
			log.Info("S3 storage connected", zap.String("endpoint", cfg.S3Endpoint), zap.String("bucket", cfg.S3Bucket))
		}
	}

	st, err := settings.Open(cfg.SettingsFile)
	if err != nil {
		log.Fatal("settings", zap.Error(err))
	}

	issuer, err := auth.NewIssuer(cfg.SessionSecret, cfg.AccessTokens)
	if err != nil {
		log.Fatal("auth", zap.Error(err))
	}
	if cfg.SessionSecret == "" {
		log.Warn("GARDEN_SESSION_SECRET not set, sessions end when the server restarts")
	}
	if len(cfg.AccessTokens) == 0 {
		log.Warn("GARDEN_ACCESS_TOKENS not set, any non-empty access token logs in")
	}

	// Always allow the local dev UI, plus configured extras.
	allowedOrigins := append([]string{"http://localhost:5173", "http://localhost:3000"}, splitOrigins(cfg.AllowedOrigins)...)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	ws := hub.New(allowedOrigins)
	go ws.Run(hubCtx)

	mgr := console.NewManager(deployer, ws, journal, console.Options{
		PollInterval:    cfg.PollInterval,
		CompletionDelay: cfg.CompletionDelay,
		MaxAttempts:     cfg.PollMaxAttempts,
		Agent:           func() string { return st.Get().AgentName() },
	})

	// Typed nils would pass the handler's nil checks.
	var journalH handler.Journal
	if db != nil {
		journalH = db
	}
	var exportsH handler.Exports
	if s3Client != nil {
		exportsH = s3Client
	}

	scheduler := gcron.New()
	h := handler.New(cfg, api, mgr, st, issuer, ws, journalH, kube, exportsH, scheduler)

	schedule(scheduler, cfg.RefreshSchedule, "services-refresh", h.RefreshServices)
	schedule(scheduler, "@every 5m", "session-evict", func(ctx context.Context) error {
		if n := mgr.Evict(time.Now().Add(-cfg.SessionRetain)); n > 0 {
			logger.GetLogger().Info("evicted console sessions", zap.Int("count", n))
		}
		return nil
	})
	if db != nil {
		schedule(scheduler, "@daily", "journal-prune", func(ctx context.Context) error {
			_, err := db.Prune(ctx, time.Now().Add(-cfg.JournalRetain))
			return err
		})
	}
	if s3Client != nil && api != nil {
		schedule(scheduler, cfg.ExportSchedule, "history-export", func(ctx context.Context) error {
			_, _, err := h.Export(ctx)
			return err
		})
	}
	scheduler.Start()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"version": Version})
		})
		h.Routes(r)
	})

	r.With(issuer.Middleware).Get("/ws", ws.HandleConnect)

	// Serve UI static files in production
	if cfg.UIDir != "" {
		fileServer(r, cfg.UIDir)
	}

	srv := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info("kube garden listening", zap.String("version", Version), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	scheduler.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	mgr.Shutdown()
}

func schedule(s *gcron.Scheduler, spec, name string, job gcron.Job) {
	if err := s.Every(spec, name, job); err != nil {
		logger.GetLogger().Warn("cron: job not scheduled", zap.String("job", name), zap.Error(err))
	}
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func fileServer(r chi.Router, dir string) {
	fs := http.FileServer(http.Dir(dir))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(filepath.Join(dir, filepath.Clean("/"+r.URL.Path))); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}
