package config

import (
	"strings"
	"time"
)

// StorageDriver names a Job Store backend.
type StorageDriver string

const (
	// StorageDriverSQLite stores everything in one embedded file.
	StorageDriverSQLite StorageDriver = "sqlite"
	// StorageDriverPostgres uses a shared PostgreSQL database.
	StorageDriverPostgres StorageDriver = "postgres"
)

// StorageConfig selects and configures the embedded store.
type StorageConfig struct {
	Driver StorageDriver `env:"STORAGE_DRIVER" envDefault:"sqlite"`

	SQLitePath        string        `env:"SQLITE_PATH"         envDefault:"casedispatch.db"`
	SQLiteSynchronous string        `env:"SQLITE_SYNCHRONOUS"  envDefault:"NORMAL"`
	SQLiteBusyTimeout time.Duration `env:"SQLITE_BUSY_TIMEOUT" envDefault:"5s"`
	SQLiteMaxConns    int           `env:"SQLITE_MAX_CONNS"    envDefault:"8"`
}

// Sanitize normalizes the driver name and falls back to SQLite for unknown values.
func (s *StorageConfig) Sanitize() {
	s.Driver = StorageDriver(strings.ToLower(strings.TrimSpace(string(s.Driver))))
	switch s.Driver {
	case StorageDriverSQLite, StorageDriverPostgres:
	case "postgresql", "pg", "pgx":
		s.Driver = StorageDriverPostgres
	default:
		s.Driver = StorageDriverSQLite
	}
	if strings.TrimSpace(s.SQLitePath) == "" {
		s.SQLitePath = "casedispatch.db"
	}
	s.SQLiteSynchronous = strings.ToUpper(strings.TrimSpace(s.SQLiteSynchronous))
	if s.SQLiteBusyTimeout <= 0 {
		s.SQLiteBusyTimeout = 5 * time.Second
	}
	if s.SQLiteMaxConns < 1 {
		s.SQLiteMaxConns = 1
	}
}

// IsPostgres reports whether the Postgres driver is selected.
func (s StorageConfig) IsPostgres() bool { return s.Driver == StorageDriverPostgres }

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"casedispatch"`
	Password string `env:"PASSWORD"                envDefault:"casedispatch"`
	Name     string `env:"NAME"                    envDefault:"casedispatch"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`

	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	// It applies to both storage drivers.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// Sanitize keeps pool settings usable.
func (d *DBConfig) Sanitize() {
	if d.MaxOpenConns < 1 {
		d.MaxOpenConns = 1
	}
	if d.MaxIdleConns < 0 {
		d.MaxIdleConns = 0
	}
	if d.MaxIdleConns > d.MaxOpenConns {
		d.MaxIdleConns = d.MaxOpenConns
	}
	if d.ConnMaxLifetime < 0 {
		d.ConnMaxLifetime = 0
	}
}

// RedisConfig contains Redis configuration. Redis only backs the timeline sweep lock; without it
// sweeps are serialized inside one process.
type RedisConfig struct {
	Enabled            bool     `env:"ENABLED"              envDefault:"false"`
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
