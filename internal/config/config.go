package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"

	"github.com/joho/godotenv" // optional .env loading for local development
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Durations are expressed in the unit the
// variable name states and converted once here so the rest of the code
// only sees time.Duration.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	HoldDuration     time.Duration // payment window for direct bookings
	WaitlistDuration time.Duration // payment window for waitlist promotions
	SweepPeriod      time.Duration // interval between expiration sweep runs
	StorageTimeout   time.Duration // bound on every storage operation

	RabbitURL string // AMQP broker URL; empty disables event publishing
}

// Load reads configuration values from environment variables, after
// loading a .env file when one is present.  Required variables are
// enforced by must() and missing values cause the program to exit with
// a fatal log message; tunables fall back to their defaults.
func Load() Config {
	_ = godotenv.Load() // absent .env is fine; real env wins anyway

	return Config{
		Env:    must("APP_ENV"),      // environment (dev/test/prod)
		DBUser: must("DB_USER"),      // database user
		DBPass: os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost: must("DB_HOST"),      // database host
		DBPort: must("DB_PORT"),      // database port
		DBName: must("DB_NAME"),      // database name

		HoldDuration:     minutes("HOLD_DURATION_MIN", 15),          // diner's window to pay
		WaitlistDuration: minutes("WAITLIST_HOLD_DURATION_MIN", 30), // promoted diner's window to pay
		SweepPeriod:      seconds("SWEEP_PERIOD_SEC", 60),           // expiration sweep cadence
		StorageTimeout:   seconds("STORAGE_TIMEOUT_SEC", 5),         // per-operation DB bound

		RabbitURL: os.Getenv("RABBITMQ_URL"), // empty disables the broker
	}
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

// intOr reads an integer environment variable, returning def when the
// variable is unset.  A set-but-invalid value is a fatal error rather
// than a silent fallback.
func intOr(key string, def int) int {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func minutes(key string, def int) time.Duration {
	return time.Duration(intOr(key, def)) * time.Minute
}

func seconds(key string, def int) time.Duration {
	return time.Duration(intOr(key, def)) * time.Second
}
