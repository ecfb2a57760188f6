package chstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
	"go.uber.org/zap"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

// DefaultBatchSize is the number of rows sent per INSERT block.
const DefaultBatchSize = 100_000

// PriceBatch holds column data for a native insert.
type PriceBatch struct {
	Year        *proto.ColUInt16
	Timestamp   *proto.ColDateTime
	TimeCentral *proto.ColStr
	Location    *proto.ColStr
	Price       *proto.ColNullable[float64]
}

func NewPriceBatch() *PriceBatch {
	return &PriceBatch{
		Year:        new(proto.ColUInt16),
		Timestamp:   new(proto.ColDateTime),
		TimeCentral: new(proto.ColStr),
		Location:    new(proto.ColStr),
		Price:       proto.NewColNullable[float64](new(proto.ColFloat64)),
	}
}

func (b *PriceBatch) Reset() {
	b.Year.Reset()
	b.Timestamp.Reset()
	b.TimeCentral.Reset()
	b.Location.Reset()
	b.Price.Reset()
}

func (b *PriceBatch) Len() int {
	return b.Year.Rows()
}

func (b *PriceBatch) Input() proto.Input {
	return proto.Input{
		{Name: "year", Data: b.Year},
		{Name: "timestamp", Data: b.Timestamp},
		{Name: "time_central", Data: b.TimeCentral},
		{Name: "location", Data: b.Location},
		{Name: "price", Data: b.Price},
	}
}

// Add appends one row. year is the archive year the row belongs to.
func (b *PriceBatch) Add(year int, r table.PriceRow) {
	b.Year.Append(uint16(year))
	b.Timestamp.Append(r.Time.UTC())
	b.TimeCentral.Append(r.Local)
	b.Location.Append(r.Location)
	if r.Price != nil {
		b.Price.Append(proto.NewNullable(*r.Price))
	} else {
		b.Price.Append(proto.Null[float64]())
	}
}

// PriceLoader inserts archived price years into ClickHouse.
type PriceLoader struct {
	conn      *ch.Client
	database  string
	BatchSize int
	Log       *zap.SugaredLogger
}

// DialPrices connects with LZ4 compression. logger may be nil.
func DialPrices(ctx context.Context, opts Options, logger *zap.Logger) (*PriceLoader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     opts.Addr,
		Database:    opts.Database,
		User:        opts.User,
		Password:    opts.Password,
		Compression: ch.CompressionLZ4,
		Logger:      logger.Named("ch"),
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect %s: %w", opts.Addr, err)
	}
	return &PriceLoader{
		conn:      conn,
		database:  opts.Database,
		BatchSize: DefaultBatchSize,
		Log:       logger.Sugar(),
	}, nil
}

func (l *PriceLoader) Close() error {
	return l.conn.Close()
}

// Table returns the fully qualified table name.
func (l *PriceLoader) Table() string {
	return fqn(l.database, PricesTable)
}

// EnsureSchema creates the table when missing.
func (l *PriceLoader) EnsureSchema(ctx context.Context) error {
	return l.conn.Do(ctx, ch.Query{Body: PricesDDL(l.database)})
}

// DropYear removes a year's partition so a reload does not duplicate rows.
func (l *PriceLoader) DropYear(ctx context.Context, year int) error {
	query := fmt.Sprintf("ALTER TABLE %s DROP PARTITION %d", l.Table(), year)
	if err := l.conn.Do(ctx, ch.Query{Body: query}); err != nil && !ignorableDropError(err) {
		return err
	}
	return nil
}

// Load replaces a year's rows and returns the number inserted.
func (l *PriceLoader) Load(ctx context.Context, year int, rows []table.PriceRow) (int, error) {
	if err := l.DropYear(ctx, year); err != nil {
		return 0, fmt.Errorf("drop partition %d: %w", year, err)
	}

	size := l.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	batch := NewPriceBatch()
	inserted := 0
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		start := time.Now()
		n := batch.Len()
		if err := l.flushBatch(ctx, batch); err != nil {
			return err
		}
		inserted += n
		if l.Log != nil {
			l.Log.Debugf("Flushed %d rows in %v", n, time.Since(start).Round(time.Millisecond))
		}
		batch.Reset()
		return nil
	}

	for _, r := range rows {
		batch.Add(year, r)
		if batch.Len() >= size {
			if err := flush(); err != nil {
				return inserted, err
			}
		}
	}
	if err := flush(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

func (l *PriceLoader) flushBatch(ctx context.Context, batch *PriceBatch) error {
	query := fmt.Sprintf("INSERT INTO %s (year, timestamp, time_central, location, price) VALUES", l.Table())
	return l.conn.Do(ctx, ch.Query{
		Body:  query,
		Input: batch.Input(),
	})
}
