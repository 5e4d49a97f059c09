package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Database settings depend on DBDriver: the
// mysql driver needs host, port, user and name while sqlite only needs a
// file path.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBDriver     string // "mysql" (default) or "sqlite"
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	SQLitePath   string // sqlite database file when DBDriver is sqlite
	JWTSecret    string // secret used to verify admin JWTs
	AccessTTLMin int    // lifetime of tokens minted by floorctl, in minutes
	FloorConfig  string // optional YAML file with tiers, rectangles and packages
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := LoadStore()
	cfg.Env = must("APP_ENV")
	cfg.Port = getenv("APP_PORT", "8080")
	cfg.JWTSecret = must("JWT_SECRET")
	cfg.AccessTTLMin = envInt("ACCESS_TOKEN_TTL_MIN", 60)
	return cfg
}

// LoadStore reads only the database and floor layout settings.  floorctl
// uses it so that maintenance commands do not need the server's secrets.
func LoadStore() Config {
	cfg := Config{
		DBDriver:    getenv("DB_DRIVER", "mysql"),
		DBPass:      os.Getenv("DB_PASS"), // empty allowed
		SQLitePath:  getenv("SQLITE_PATH", "floor.db"),
		FloorConfig: os.Getenv("FLOOR_CONFIG"),
	}
	switch cfg.DBDriver {
	case "mysql":
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case "sqlite":
	default:
		log.Fatalf("unsupported DB_DRIVER: %q", cfg.DBDriver)
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
