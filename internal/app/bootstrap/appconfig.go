// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, logging, CORS and body limits.
// Everything specific to the Pilito sync console lives here. The struct
// is passed to every lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: pilitosync-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Maximum session cookie lifetime (default: 24h)

	// CSRF protection for the console's HTML forms
	CSRFKey string

	// Action authorization values (nonces) for /admin/ajax
	NonceKey string        // HKDF input for the nonce cipher key
	NonceTTL time.Duration // How long a rendered nonce stays valid (default: 24h)

	// Pilito API
	PilitoDefaultAPIURL string        // Seeded into the API URL option when nothing is saved
	PilitoHTTPTimeout   time.Duration // Bound on one verification request (default: 15s)

	// Rate limiting of sign-in attempts
	RateLimitEnabled       bool
	RateLimitLoginAttempts int           // Failures allowed inside the window (default: 5)
	RateLimitLoginWindow   time.Duration // Window for counting failures (default: 15m)
	RateLimitLoginLockout  time.Duration // Lockout once the limit is hit (default: 30m)

	// Audit logging: "all" (MongoDB + zap), "db", "log" or "off"
	AuditLogAuth      string        // sign-in and sign-out events
	AuditLogAdmin     string        // settings saves and connection tests
	AuditLogRetention time.Duration // Events older than this are purged; 0 keeps them

	// Admin seeding
	SeedAdminLoginID  string // Login ID of the admin to create on startup (if set)
	SeedAdminName     string
	SeedAdminPassword string // Required when the account does not exist yet
}
