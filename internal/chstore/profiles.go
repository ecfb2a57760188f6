package chstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/profile"
)

// ProfileRecord is one profile file to load. Year is 0 for a typical year.
type ProfileRecord struct {
	Technology profile.Technology
	Hub        string
	Year       int
	Values     profile.Profile
}

// ProfileWriter inserts capacity-factor profiles.
type ProfileWriter struct {
	conn     driver.Conn
	database string
}

// OpenProfiles connects and pings the server.
func OpenProfiles(ctx context.Context, opts Options) (*ProfileWriter, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.User,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect %s: %w", opts.Addr, err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", opts.Addr, err)
	}
	return &ProfileWriter{conn: conn, database: opts.Database}, nil
}

func (w *ProfileWriter) Close() error {
	return w.conn.Close()
}

// Table returns the fully qualified table name.
func (w *ProfileWriter) Table() string {
	return fqn(w.database, ProfilesTable)
}

// EnsureSchema creates the table when missing.
func (w *ProfileWriter) EnsureSchema(ctx context.Context) error {
	return w.conn.Exec(ctx, ProfilesDDL(w.database))
}

// Write inserts every hour of one profile in a single batch.
func (w *ProfileWriter) Write(ctx context.Context, rec ProfileRecord) (int, error) {
	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf(
		"INSERT INTO %s (technology, hub, year, hour, cf)", w.Table()))
	if err != nil {
		return 0, err
	}

	for hour, cf := range rec.Values {
		if err := batch.Append(string(rec.Technology), rec.Hub, uint16(rec.Year), uint16(hour), float32(cf)); err != nil {
			_ = batch.Abort()
			return 0, fmt.Errorf("append hour %d: %w", hour, err)
		}
	}
	if err := batch.Send(); err != nil {
		return 0, err
	}
	return len(rec.Values), nil
}
