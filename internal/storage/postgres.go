package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"version-gate/internal/config"
)

// NotifyChannel is the channel the migration triggers publish rule changes on.
const NotifyChannel = "version_rules_changed"

// ErrKeyNotFound is returned when an API key id is unknown or revoked.
var ErrKeyNotFound = errors.New("api key not found")

type Store struct {
	pool    *pgxpool.Pool
	channel string
}

// RuleRow is one version_rules row. MessageConfig is the raw JSONB object.
type RuleRow struct {
	ID                string
	AppID             string
	Platform          string
	Environment       string
	KillSwitch        bool
	BlockedVersions   []string
	MinVersion        string
	LatestVersion     string
	UpdateType        string
	MessageConfig     map[string]any
	IsActive          bool
	Priority          int
	RolloutPercentage int
	StartDate         *time.Time
	EndDate           *time.Time
}

// PlatformRow holds the per-platform store URL and global minimum version.
type PlatformRow struct {
	AppID      string
	Platform   string
	StoreURL   string
	MinVersion string
}

type MaintenanceRow struct {
	AppID        string
	IsEnabled    bool
	Title        string
	Message      string
	EstimatedEnd *time.Time
}

// Snapshot is everything the version check needs, loaded in one pass.
type Snapshot struct {
	Rules       []RuleRow
	Platforms   []PlatformRow
	Maintenance []MaintenanceRow
	LoadedAt    time.Time
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	dsn := cfg.DSN()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool, channel: cfg.Listener.Channel}, nil
}

// NewFromPool wraps an existing pool.
func NewFromPool(pool *pgxpool.Pool, channel string) *Store {
	return &Store{pool: pool, channel: channel}
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// LoadSnapshot loads all active rules plus per-app platform and maintenance
// settings. Inactive rules never reach the engine.
func (s *Store) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	snap := Snapshot{LoadedAt: time.Now()}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, app_id::text, platform, environment, kill_switch, blocked_versions,
		       min_version, latest_version, update_type, message_config, is_active, priority,
		       rollout_percentage, start_date, end_date
		FROM version_rules
		WHERE is_active
		ORDER BY app_id, priority DESC, created_at
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query rules: %w", err)
	}
	snap.Rules, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (RuleRow, error) {
		var r RuleRow
		err := row.Scan(&r.ID, &r.AppID, &r.Platform, &r.Environment, &r.KillSwitch, &r.BlockedVersions,
			&r.MinVersion, &r.LatestVersion, &r.UpdateType, &r.MessageConfig, &r.IsActive, &r.Priority,
			&r.RolloutPercentage, &r.StartDate, &r.EndDate)
		return r, err
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan rules: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT app_id::text, platform, store_url, min_version
		FROM app_platforms
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query platforms: %w", err)
	}
	snap.Platforms, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (PlatformRow, error) {
		var p PlatformRow
		err := row.Scan(&p.AppID, &p.Platform, &p.StoreURL, &p.MinVersion)
		return p, err
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan platforms: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT app_id::text, is_enabled, title, message, estimated_end
		FROM maintenance_modes
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query maintenance: %w", err)
	}
	snap.Maintenance, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (MaintenanceRow, error) {
		var m MaintenanceRow
		err := row.Scan(&m.AppID, &m.IsEnabled, &m.Title, &m.Message, &m.EstimatedEnd)
		return m, err
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan maintenance: %w", err)
	}

	return snap, nil
}

// LookupAPIKey returns the bcrypt hash and owning app for a non-revoked key id.
func (s *Store) LookupAPIKey(ctx context.Context, keyID string) (hash, appID string, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT key_hash, app_id::text
		FROM api_keys
		WHERE id = $1::uuid
		  AND revoked_at IS NULL
	`, keyID).Scan(&hash, &appID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrKeyNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("lookup api key: %w", err)
	}
	return hash, appID, nil
}

// CreateApp inserts an app and returns its id.
func (s *Store) CreateApp(ctx context.Context, name string) (string, error) {
	var id string
	if err := s.pool.QueryRow(ctx, `INSERT INTO apps (name) VALUES ($1) RETURNING id::text`, name).Scan(&id); err != nil {
		return "", fmt.Errorf("create app: %w", err)
	}
	return id, nil
}

// CreateAPIKey stores the hash of a generated key for an app.
func (s *Store) CreateAPIKey(ctx context.Context, keyID, appID, keyHash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_keys (id, app_id, key_hash)
		VALUES ($1::uuid, $2::uuid, $3)
	`, keyID, appID, keyHash)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *Store) ListenChannel() string {
	return normalizeChannel(s.channel)
}

func (s *Store) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}

func normalizeChannel(channel string) string {
	if channel == "" {
		return NotifyChannel
	}
	return channel
}

// ListenStatement quotes channel for use in LISTEN.
func ListenStatement(channel string) string {
	return "LISTEN " + pgx.Identifier{normalizeChannel(channel)}.Sanitize()
}
