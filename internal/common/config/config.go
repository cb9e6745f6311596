package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Postgres struct {
		Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
		Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
		User            string        `env:"POSTGRES_USER" envDefault:"postgres"`
		Password        string        `env:"POSTGRES_PASSWORD" envDefault:""`
		Database        string        `env:"POSTGRES_DB" envDefault:"community_bot"`
		SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
		MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Discord struct {
		BotToken string `env:"BOT_TOKEN,required"`
		// GuildID restricts slash-command registration to a single guild
		// while testing; empty registers commands globally.
		GuildID    string        `env:"DISCORD_GUILD_ID" envDefault:""`
		APITimeout time.Duration `env:"DISCORD_API_TIMEOUT" envDefault:"10s"`
	}

	Lifecycle struct {
		GiveawayTickInterval time.Duration `env:"GIVEAWAY_TICK_INTERVAL" envDefault:"10s"`
		PollTickInterval     time.Duration `env:"POLL_TICK_INTERVAL" envDefault:"30s"`
		CacheRetention       time.Duration `env:"LIFECYCLE_CACHE_RETENTION" envDefault:"24h"`

		// When false, entities that expired while the process was down are
		// finalized on startup without re-announcing to the channel.
		AnnounceOnStartupCatchup bool `env:"ANNOUNCE_ON_STARTUP_CATCHUP" envDefault:"false"`
	}
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		// .env is optional; production sets variables directly
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}

// GetDSN builds the postgres connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Password,
		c.Postgres.Database, c.Postgres.SSLMode)
}
