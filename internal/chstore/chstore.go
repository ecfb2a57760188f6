// Package chstore loads the static artifacts into ClickHouse for ad-hoc
// analysis. Settlement prices go through the ch-go native columnar protocol;
// capacity-factor profiles use the clickhouse-go/v2 batch API.
package chstore

import (
	"fmt"
	"strings"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
)

// Default table names.
const (
	PricesTable   = "spp_raw"
	ProfilesTable = "capacity_factors"
)

// Options holds connection settings.
type Options struct {
	Addr     string
	Database string
	User     string
	Password string
}

// OptionsFromConfig copies the ClickHouse settings from the shared config.
func OptionsFromConfig(c *common.Config) Options {
	return Options{
		Addr:     c.ClickHouseHost,
		Database: c.ClickHouseDatabase,
		User:     c.ClickHouseUser,
		Password: c.ClickHousePassword,
	}
}

func fqn(db, table string) string {
	return fmt.Sprintf("%s.%s", db, table)
}

// PricesDDL creates the settlement price table, partitioned by year.
func PricesDDL(db string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    year         UInt16,
    timestamp    DateTime('UTC'),
    time_central String,
    location     String,
    price        Nullable(Float64)
) ENGINE = MergeTree
PARTITION BY year
ORDER BY (location, timestamp)`, fqn(db, PricesTable))
}

// ProfilesDDL creates the capacity-factor table. year is 0 for typical-year
// rows; re-loading a profile replaces its rows on merge.
func ProfilesDDL(db string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    technology LowCardinality(String),
    hub        LowCardinality(String),
    year       UInt16,
    hour       UInt16,
    cf         Float32,
    loaded_at  DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(loaded_at)
ORDER BY (technology, hub, year, hour)`, fqn(db, ProfilesTable))
}

// ignorableDropError reports errors from dropping a partition that does not
// exist yet.
func ignorableDropError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "not found") || strings.Contains(msg, "NO_SUCH_DATA_PART")
}
