package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/skiniq/internal/application"
	appanalysis "github.com/bryanwahyu/skiniq/internal/application/analysis"
	"github.com/bryanwahyu/skiniq/internal/config"
	"github.com/bryanwahyu/skiniq/internal/domain/diary"
	"github.com/bryanwahyu/skiniq/internal/domain/failures"
	"github.com/bryanwahyu/skiniq/internal/domain/routine"
	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	aiopenai "github.com/bryanwahyu/skiniq/internal/infra/ai/openai"
	"github.com/bryanwahyu/skiniq/internal/infra/classifier"
	"github.com/bryanwahyu/skiniq/internal/infra/db/badgerdb"
	"github.com/bryanwahyu/skiniq/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/skiniq/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/skiniq/internal/infra/db/postgres"
	"github.com/bryanwahyu/skiniq/internal/infra/executor/pool"
	"github.com/bryanwahyu/skiniq/internal/infra/httpserver"
	"github.com/bryanwahyu/skiniq/internal/infra/model"
	"github.com/bryanwahyu/skiniq/internal/infra/model/linear"
	"github.com/bryanwahyu/skiniq/internal/infra/model/text"
	"github.com/bryanwahyu/skiniq/internal/infra/model/tfserving"
	minioStore "github.com/bryanwahyu/skiniq/internal/infra/storage"
	"github.com/bryanwahyu/skiniq/internal/logging"
	"github.com/bryanwahyu/skiniq/internal/middleware"
)

// stores groups the repositories picked by storage.driver
type stores struct {
	profiles domain.ProfileRepository
	history  domain.HistoryRepository
	failures failures.Repository
	diary    diary.Repository
	create   func(ctx context.Context, subjectID string) error
	ping     middleware.CheckFunc
	close    func() error
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn().Err(err).Msg("store close")
		}
	}()
	for _, s := range cfg.Storage.SeedSubjects {
		if err := st.create(ctx, s); err != nil {
			return fmt.Errorf("seed subject %s: %w", s, err)
		}
	}

	checkers := map[string]middleware.HealthChecker{"store": st.ping}

	// init minio (optional)
	var images domain.ImageStore
	if cfg.Minio.Enabled {
		ms, err := minioStore.New(ctx, minioStore.Options{
			Endpoint:  cfg.Minio.Endpoint,
			Region:    cfg.Minio.Region,
			Bucket:    cfg.Minio.BucketName,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			PublicURL: cfg.Minio.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		images = ms
		checkers["images"] = middleware.CheckFunc(ms.Ping)
	}

	// model registry
	registry := model.NewRegistry(imageLoader(cfg, log), text.FileLoader(text.Paths{
		Vectorizer: cfg.Model.VectorizerPath,
		Classifier: cfg.Model.ClassifierPath,
		Binarizer:  cfg.Model.BinarizerPath,
	}), log)
	checkers["models"] = registry
	if cfg.Model.Preload {
		if err := registry.EnsureLoaded(ctx); err != nil {
			// first request retries the load
			log.Error().Err(err).Msg("model preload failed")
		}
	}

	rules, err := routine.DefaultRules()
	if cfg.Routine.RulesPath != "" {
		rules, err = routine.LoadRules(cfg.Routine.RulesPath)
	}
	if err != nil {
		return fmt.Errorf("routine rules: %w", err)
	}

	workers := pool.New(cfg.Inference.Workers, cfg.Inference.Queue, log)
	defer workers.Close()

	// init service
	svc := &appanalysis.Service{
		Profiles:        st.profiles,
		Analyses:        st.history,
		Images:          images,
		Failures:        st.failures,
		Diary:           st.diary,
		ImageClassifier: &classifier.Image{Registry: registry, Size: cfg.Model.InputSize},
		TextClassifier:  &classifier.Text{Registry: registry},
		Routines:        routine.NewEngine(rules),
		Pool:            workers,
		Clock:           application.SystemClock{},
		Logger:          log.With().Str("component", "analysis").Logger(),
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	rateLimit := 0
	if cfg.RateLimit.Enabled {
		rateLimit = cfg.RateLimit.Requests
	}
	srv := &http.Server{
		Addr: addr,
		Handler: httpserver.NewRouter(svc, httpserver.Options{
			Logger:         log,
			Checkers:       checkers,
			CORSOrigins:    cfg.Server.CORSOrigins,
			RateLimit:      rateLimit,
			RateWindow:     cfg.RateLimit.Window,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("storage", cfg.Storage.Driver).Str("image_backend", cfg.Model.ImageBackend).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// graceful shutdown
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	return nil
}

func imageLoader(cfg *config.Config, log zerolog.Logger) model.ImageLoader {
	switch cfg.Model.ImageBackend {
	case "tfserving":
		return tfserving.New(tfserving.Options{
			BaseURL: cfg.Model.TFServing.URL,
			Model:   cfg.Model.TFServing.Model,
			Timeout: cfg.Model.TFServing.Timeout,
		}, log).Loader()
	case "openai":
		oc := goopenai.DefaultConfig(cfg.Model.OpenAI.APIKey)
		return aiopenai.NewClientWithConfig(oc, cfg.Model.OpenAI.Model).Loader()
	}
	return linear.Loader(cfg.Model.ImagePath)
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case "badger":
		s, err := badgerdb.Open(cfg.Badger.Path)
		if err != nil {
			return nil, err
		}
		return &stores{profiles: s, history: s, failures: s, diary: s, create: s.Create, ping: s.Ping, close: s.Close}, nil

	case "mysql":
		// connect MySQL
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		if cfg.Storage.Migrate {
			if err := mysqlp.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, fmt.Errorf("mysql migrate: %w", err)
			}
		}
		profiles := mysqlp.NewProfileRepository(db)
		st := sqlStores(db, profiles, mysqlp.NewHistoryRepository(db), mysqlp.NewFailureRepository(db), profiles.Create)
		st.diary = mysqlp.NewDiaryRepository(db)
		return st, nil

	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if cfg.Storage.Migrate {
			if err := pgp.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		profiles := pgp.NewProfileRepository(db)
		st := sqlStores(db, profiles, pgp.NewHistoryRepository(db), pgp.NewFailureRepository(db), profiles.Create)
		st.diary = pgp.NewDiaryRepository(db)
		return st, nil
	}

	log.Warn().Msg("using in-memory store, data is lost on restart")
	s := memory.New()
	return &stores{profiles: s, history: s, failures: s, diary: s, create: s.Create, ping: s.Ping, close: func() error { return nil }}, nil
}

func sqlStores(db *sql.DB, p domain.ProfileRepository, h domain.HistoryRepository, f failures.Repository, create func(context.Context, string) error) *stores {
	hc := &middleware.DatabaseHealthChecker{DB: db}
	return &stores{
		profiles: p,
		history:  h,
		failures: f,
		create:   create,
		ping:     hc.Check,
		close:    db.Close,
	}
}
