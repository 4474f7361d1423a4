package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Server configuration
	Server struct {
		// HTTP listen port
		Port int `env:"SERVER_PORT" envDefault:"5250"`

		// Allowed CORS origins for the admin UI
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

		// Shared secret guarding the administrative rebuild endpoint
		AdminSecret string `env:"ADMIN_SECRET"`
	}

	// Database configuration
	Database struct {
		Path string `env:"DB_PATH" envDefault:"database/housematch.db"`
	}

	// Matching engine configuration
	Matching struct {
		// Maximum entries kept per snapshot list
		SnapshotLimit int `env:"MATCH_SNAPSHOT_LIMIT" envDefault:"20"`

		// Page size for the bulk rebuild scan
		RebuildPageSize int `env:"REBUILD_PAGE_SIZE" envDefault:"400"`

		// Concurrent workers for the propagate fan-out
		ReindexWorkers int `env:"REINDEX_WORKERS" envDefault:"4"`

		// Retries for failed snapshot writes
		WriteRetries int `env:"SNAPSHOT_WRITE_RETRIES" envDefault:"2"`

		// Delay between write retries in seconds
		WriteRetryDelay int `env:"SNAPSHOT_WRITE_RETRY_DELAY" envDefault:"1"`
	}

	// Retention configuration
	Retention struct {
		// Newest activity entries kept per user
		KeepPerUser int `env:"RETENTION_KEEP_PER_USER" envDefault:"5"`

		// Maximum deletions per batch
		DeleteBatchSize int `env:"RETENTION_DELETE_BATCH" envDefault:"400"`

		// Cron spec for the pruning job
		CronSpec string `env:"RETENTION_CRON" envDefault:"0 4 * * *"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
