package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"rubric-eval-service/internal/app"
	"rubric-eval-service/internal/config"
	"rubric-eval-service/internal/domain"
	"rubric-eval-service/internal/infra/memory"
	pgstore "rubric-eval-service/internal/infra/postgres"
	redisinfra "rubric-eval-service/internal/infra/redis"
	transport "rubric-eval-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the evaluation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	rubricTTL := config.TTLDuration(cfg.Rubric.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	// Storage wiring: postgres when configured, otherwise a seeded in-memory
	// store so the service runs standalone.
	var (
		rubricStore app.RubricStore
		presenters  app.PresenterRepository
		evaluations app.EvaluationRepository
		loader      memory.RubricLoader
	)
	if pool != nil {
		store := pgstore.NewStore(pool)
		rubricStore, presenters, evaluations, loader = store, store, store, store
	} else {
		store := memory.NewStore()
		store.Seed(sampleRubricItems(), samplePresenters())
		rubricStore, presenters, evaluations, loader = store, store, store, store
	}

	var rubrics app.RubricRepository
	var invalidator app.RubricInvalidator
	if redisClient != nil {
		cache := redisinfra.NewRubricCache(redisClient, loader, rubricTTL)
		rubrics, invalidator = cache, cache
	} else {
		cache := memory.NewRubricCache(loader, rubricTTL)
		rubrics, invalidator = cache, cache
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	service := app.NewEvalService(sessions, rubrics, presenters, evaluations)
	editor := app.NewEditorService(rubricStore, presenters, invalidator)
	wsHandler := transport.NewWSHandler(service)
	adminHandler := transport.NewAdminHandler(editor, service, presenters)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	adminHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting evaluation service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleRubricItems provides a minimal rubric for standalone runs; production
// deployments load rows from Postgres.
func sampleRubricItems() []domain.RubricItem {
	intro := domain.NewRubricItem(domain.CategoryContenu)
	intro.Title = "Structure de l'exposé"
	intro.Criteria = []domain.Criterion{
		{ID: "crit-intro", Subtitle: "Introduction", Explication: "Accroche et annonce du plan", Points: 4},
		{ID: "crit-plan", Subtitle: "Plan", Explication: "Enchaînement logique des parties", Points: 4},
	}

	voice := domain.NewRubricItem(domain.CategoryParaverbal)
	voice.Title = "Voix"
	voice.Criteria = []domain.Criterion{
		{ID: "crit-volume", Subtitle: "Volume", Explication: "Audible pour toute la salle", Points: 2},
	}

	slides := domain.NewRubricItem(domain.CategorySupport)
	slides.Title = "Diaporama"
	slides.IsCommon = true
	slides.Criteria = []domain.Criterion{
		{ID: "crit-slides", Subtitle: "Lisibilité", Explication: "Slides lisibles et sobres", Points: 4},
	}

	return []domain.RubricItem{intro, voice, slides}
}

func samplePresenters() []domain.Presenter {
	return []domain.Presenter{
		{ID: "p1", Name: "Alice Martin"},
		{ID: "p2", Name: "Benjamin Durand"},
	}
}
