//go:build integration

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"version-gate/migrations"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(runTests(m))
}

func runTests(m *testing.M) int {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "gate_test",
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgresql://test:test@%s:%s/gate_test?sslmode=disable", host, port.Port())
		}).WithStartupTimeout(30 * time.Second),
	}

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Printf("start postgres container: %v", err)
		return 1
	}
	defer func() { _ = pg.Terminate(ctx) }()

	host, err := pg.Host(ctx)
	if err != nil {
		log.Printf("container host: %v", err)
		return 1
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Printf("mapped port: %v", err)
		return 1
	}
	connStr := fmt.Sprintf("postgresql://test:test@%s:%s/gate_test?sslmode=disable", host, port.Port())

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Printf("open db: %v", err)
		return 1
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Printf("set dialect: %v", err)
		return 1
	}
	if err := goose.Up(db, "."); err != nil {
		log.Printf("migrate: %v", err)
		return 1
	}

	testPool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		log.Printf("create pool: %v", err)
		return 1
	}
	defer testPool.Close()

	return m.Run()
}

func TestStore_SnapshotAndKeys(t *testing.T) {
	ctx := context.Background()
	store := NewFromPool(testPool, "")

	appID, err := store.CreateApp(ctx, "demo")
	require.NoError(t, err)

	_, err = testPool.Exec(ctx, `
		INSERT INTO version_rules (app_id, platform, environment, blocked_versions, latest_version, update_type, message_config, priority)
		VALUES ($1::uuid, 'ios', 'prod', '{1.0.0}', '2.0.0', 'force', '{"title":"Update","imageUrl":"x"}', 5),
		       ($1::uuid, 'all', 'prod', '{}', '1.0.0', 'soft', '{}', 1)
	`, appID)
	require.NoError(t, err)
	_, err = testPool.Exec(ctx, `INSERT INTO version_rules (app_id, platform, environment, is_active) VALUES ($1::uuid, 'ios', 'prod', false)`, appID)
	require.NoError(t, err)
	_, err = testPool.Exec(ctx, `INSERT INTO app_platforms (app_id, platform, store_url, min_version) VALUES ($1::uuid, 'ios', 'https://apps.apple.com/x', '0.9.0')`, appID)
	require.NoError(t, err)
	_, err = testPool.Exec(ctx, `INSERT INTO maintenance_modes (app_id, is_enabled, title) VALUES ($1::uuid, false, 'Down')`, appID)
	require.NoError(t, err)

	snap, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Rules, 2, "inactive rules are not loaded")
	assert.Equal(t, 5, snap.Rules[0].Priority)
	assert.Equal(t, []string{"1.0.0"}, snap.Rules[0].BlockedVersions)
	assert.Equal(t, "x", snap.Rules[0].MessageConfig["imageUrl"])
	require.Len(t, snap.Platforms, 1)
	assert.Equal(t, "0.9.0", snap.Platforms[0].MinVersion)
	require.Len(t, snap.Maintenance, 1)
	assert.Equal(t, "Down", snap.Maintenance[0].Title)

	keyID := "7d0e7b1a-3f7e-4c59-a1c4-6a1f8b3d2e10"
	require.NoError(t, store.CreateAPIKey(ctx, keyID, appID, "hash"))

	hash, owner, err := store.LookupAPIKey(ctx, keyID)
	require.NoError(t, err)
	assert.Equal(t, "hash", hash)
	assert.Equal(t, appID, owner)

	_, _, err = store.LookupAPIKey(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
