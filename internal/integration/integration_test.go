package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"rubric-eval-service/internal/app"
	"rubric-eval-service/internal/domain"
	pgstore "rubric-eval-service/internal/infra/postgres"
	pgmigrations "rubric-eval-service/internal/infra/postgres/migrations"
	infraredis "rubric-eval-service/internal/infra/redis"
)

func TestEvaluationEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedRubric(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	rubricCache := infraredis.NewRubricCache(redisClient, store, 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewEvalService(sessionStore, rubricCache, store, store)

	if _, err := service.Join(ctx, "classe-3b", "u1", "Mme Durand"); err != nil {
		t.Fatalf("join: %v", err)
	}

	board, err := service.SetRating(ctx, "classe-3b", "crit-1", "alice-id", 2)
	if err != nil {
		t.Fatalf("set rating: %v", err)
	}
	if len(board.Entries) != 2 {
		t.Fatalf("expected one scoreboard entry per presenter, got %+v", board.Entries)
	}
	var alice domain.ScoreboardEntry
	for _, e := range board.Entries {
		if e.PresenterID == "alice-id" {
			alice = e
		}
	}
	// 8 points, level 2 out of 4.
	if alice.Total != 4.0 {
		t.Fatalf("expected alice at 4.0, got %v", alice.Total)
	}

	rec, _, err := service.Submit(ctx, "classe-3b")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("expected persisted record with id and timestamp, got %+v", rec)
	}

	stored, err := store.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("list evaluations: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected one stored evaluation, got %d", len(stored))
	}
	if stored[0].FinalScores["alice-id"] != 4.0 {
		t.Fatalf("expected alice final score 4.0, got %+v", stored[0].FinalScores)
	}
	if stored[0].Responses["Accroche"]["alice-id"] != 2 {
		t.Fatalf("expected recorded level 2, got %+v", stored[0].Responses)
	}
}

func TestRosterReplaceEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	seedRubric(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewStore(pool)
	if err := store.ReplacePresenters(ctx, []string{"Chloé Bernard", "David Morel"}); err != nil {
		t.Fatalf("replace presenters: %v", err)
	}
	roster, err := store.ListPresenters(ctx)
	if err != nil {
		t.Fatalf("list presenters: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 presenters, got %+v", roster)
	}
	names := map[string]bool{}
	for _, p := range roster {
		names[p.Name] = true
	}
	if !names["Chloé Bernard"] || !names["David Morel"] {
		t.Fatalf("unexpected roster %+v", roster)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "eval", "POSTGRES_PASSWORD": "evalpass", "POSTGRES_DB": "evaldb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://eval:evalpass@%s:%s/evaldb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

// seedRubric migrates the schema and inserts one rubric item plus two
// presenters.
func seedRubric(t *testing.T, ctx context.Context, dsn string) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	criteria, err := json.Marshal([]domain.Criterion{
		{ID: "crit-1", Subtitle: "Accroche", Explication: "Capte l'attention", Points: 8},
	})
	if err != nil {
		t.Fatalf("marshal criteria: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO rubric_items (id, title, category, is_common, criteria)
		VALUES ('item-1', 'Introduction', 'contenu', FALSE, ?::jsonb)`, string(criteria)); err != nil {
		t.Fatalf("insert rubric item: %v", err)
	}
	for _, p := range [][2]string{{"alice-id", "Alice"}, {"bob-id", "Bob"}} {
		if _, err := db.ExecContext(ctx, `INSERT INTO presenters (id, name) VALUES (?, ?)`, p[0], p[1]); err != nil {
			t.Fatalf("insert presenter: %v", err)
		}
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
