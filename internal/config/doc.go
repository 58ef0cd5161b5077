// Package config loads the service configuration from a YAML file.
//
// The file is expanded with os.ExpandEnv before parsing, so values such as
// "${DATABASE_URL}" resolve from the environment. After parsing, the
// conventional deployment variables PORT, DATABASE_URL, CORS_ORIGINS,
// ADMIN_SECRET and LOG_LEVEL override whatever the file says. A missing path
// yields the defaults plus environment overrides.
//
// Watch reloads the file on change; only the scoring policy, health weights
// and organization directory are meant to be applied live.
package config
