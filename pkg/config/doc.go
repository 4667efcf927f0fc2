// Package config loads and validates the service configuration.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML file named by IDENTITY_CONFIG_FILE, and IDENTITY_*
// environment variables.
//
//	IDENTITY_PORT="8080"
//	IDENTITY_HEALTH_PORT="9090"
//	IDENTITY_DATABASE_URL="postgres://localhost/identity?sslmode=disable"
//	IDENTITY_SESSION_BACKEND="postgres"   # postgres or redis
//	IDENTITY_REDIS_URL="redis://localhost:6379/0"
//	IDENTITY_OIDC_ISSUER_URL="https://tenant.example.com/"
//	IDENTITY_OIDC_AUDIENCE="https://identity.example.com/api"
//	IDENTITY_ROOT_EMAIL="admin@example.com"
//	IDENTITY_LOG_LEVEL="info"
//
// The same keys in YAML:
//
//	database:
//	  url: postgres://localhost/identity
//	  max_conns: 20
//	sessions:
//	  backend: redis
//	  ttl: 336h
//	oidc:
//	  issuer_url: https://tenant.example.com/
//	  audience: https://identity.example.com/api
//	root_email: admin@example.com
package config
