// Package presence tracks which devices have recently sent a heartbeat
// and counts how many distinct people are online.
package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// DefaultWindow is how far back a heartbeat still counts as online.
const DefaultWindow = 300 * time.Second

// MinWindow is the floor applied to configured windows.
const MinWindow = 30 * time.Second

// Device is one heartbeat row. UserID is nil for anonymous devices.
type Device struct {
	DeviceID  string  `db:"device_id"`
	UserID    *int64  `db:"user_id"`
	UserAgent *string `db:"user_agent"`
}

// CountUnique dedupes heartbeat rows into distinct online parties.
// An authenticated device keys on user plus normalized user agent, so
// several tabs of one browser count once; without a user agent it keys
// on user plus device; anonymous devices each count on their own.
func CountUnique(devices []Device) int {
	keys := map[string]struct{}{}
	for _, d := range devices {
		var agent string
		if d.UserAgent != nil {
			agent = strings.ToLower(strings.TrimSpace(*d.UserAgent))
		}
		switch {
		case d.UserID != nil && agent != "":
			keys[fmt.Sprintf("user:%d:agent:%s", *d.UserID, agent)] = struct{}{}
		case d.UserID != nil:
			keys[fmt.Sprintf("user:%d:device:%s", *d.UserID, d.DeviceID)] = struct{}{}
		default:
			keys["anon:"+d.DeviceID] = struct{}{}
		}
	}
	return len(keys)
}

// ClampWindow applies the defaults and floor to a configured window.
func ClampWindow(window time.Duration) time.Duration {
	if window <= 0 {
		return DefaultWindow
	}
	if window < MinWindow {
		return MinWindow
	}
	return window
}

// PostgresStore persists device heartbeats.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore on an open connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Touch upserts a device heartbeat. A known device keeps its user and
// user agent unless the heartbeat carries fresh values. Empty device ids
// are ignored.
func (s *PostgresStore) Touch(ctx context.Context, deviceID string, userID *int64, userAgent string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	var agent *string
	if trimmed := strings.TrimSpace(userAgent); trimmed != "" {
		agent = &trimmed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO online_device_presence (device_id, user_id, user_agent, last_seen_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (device_id) DO UPDATE SET
			last_seen_at = NOW(),
			user_id = COALESCE(EXCLUDED.user_id, online_device_presence.user_id),
			user_agent = COALESCE(EXCLUDED.user_agent, online_device_presence.user_agent)`,
		deviceID, userID, agent)
	if err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	return nil
}

// Remove drops a device's heartbeat row. Unknown devices are a no-op.
func (s *PostgresStore) Remove(ctx context.Context, deviceID string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM online_device_presence WHERE device_id = $1", deviceID); err != nil {
		return fmt.Errorf("failed to remove device: %w", err)
	}
	return nil
}

// OnlineCount counts distinct parties seen within the window.
func (s *PostgresStore) OnlineCount(ctx context.Context, window time.Duration) (int, error) {
	window = ClampWindow(window)
	devices := []Device{}
	err := s.db.SelectContext(ctx, &devices,
		"SELECT device_id, user_id, user_agent FROM online_device_presence WHERE last_seen_at >= NOW() - $1::interval",
		fmt.Sprintf("%d seconds", int(window.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to load presence rows: %w", err)
	}
	return CountUnique(devices), nil
}
