package configs

// Redis holds configuration for the reservation store connection. The
// store carries only per-sale counters and claimant sets, so a single
// logical database is sufficient.
type Redis struct {
	// Addr is the host:port of the Redis server.
	Addr string `env:"ADDRESS" envDefault:"localhost:6379"`
	// Password is the optional AUTH password.
	Password string `env:"PASSWORD" envDefault:""`
	// DB selects the logical database holding the reservation key-space.
	DB int `env:"DB" envDefault:"0"`
}
