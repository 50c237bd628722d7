// Package config loads remindctl configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use $REMINDCTL_CONFIG when set
//  3. Otherwise, use ~/.config/remindctl/config.toml (default)
//  4. If the file doesn't exist, start from an empty config
//  5. Apply REMINDCTL_* environment overrides on top of the file
//  6. Fill anything still empty with defaults
//
// # TOML Format
//
//	base_url = "https://api.apptremind.example"
//	timeout_seconds = 10
//	refresh_timeout_seconds = 10
//	keepalive_seconds = 60
//	user_agent = "remindctl/0.1"
//
//	[credentials]
//	backend = "file"            # file, redis or memory
//	path = "~/.config/remindctl/credentials.toml"
//	key = "apptremind.tokens"
//	redis_addr = "localhost:6379"
//	redis_password = ""
//	redis_db = 0
//
//	[log]
//	level = "info"
//	file = ""                   # JSON lines when set, console on stderr otherwise
//
// Every field is optional. Tilde expansion is performed for credentials.path
// and log.file.
//
// # Environment
//
// Each key has an override named after it, read with cleanenv:
// REMINDCTL_BASE_URL, REMINDCTL_TIMEOUT_SECONDS,
// REMINDCTL_REFRESH_TIMEOUT_SECONDS, REMINDCTL_KEEPALIVE_SECONDS,
// REMINDCTL_USER_AGENT, REMINDCTL_CREDENTIALS_BACKEND,
// REMINDCTL_CREDENTIALS_PATH, REMINDCTL_CREDENTIALS_KEY, REMINDCTL_REDIS_ADDR,
// REMINDCTL_REDIS_PASSWORD, REMINDCTL_REDIS_DB, REMINDCTL_LOG_LEVEL and
// REMINDCTL_LOG_FILE.
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g., cannot determine home directory)
//   - File read errors (except os.ErrNotExist, which triggers defaults)
//   - TOML parsing errors and malformed environment values
//   - Negative timeouts and unknown credential backends
package config
