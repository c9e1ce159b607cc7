package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "PACKRESCUE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "PACKRESCUE_APP_ENV"
	EnvPort     = "PACKRESCUE_APP_PORT"
	EnvLogLevel = "PACKRESCUE_LOG_LEVEL"

	EnvDBDSN    = "PACKRESCUE_DB_DSN"
	EnvDBHost   = "PACKRESCUE_DB_HOST"
	EnvDBUser   = "PACKRESCUE_DB_USER"
	EnvDBName   = "PACKRESCUE_DB_NAME"
	EnvRedisURL = "PACKRESCUE_REDIS_URL"

	EnvJWTSecret  = "PACKRESCUE_JWT_SECRET"
	EnvJWTIssuer  = "PACKRESCUE_JWT_ISSUER"
	EnvJWTExpMins = "PACKRESCUE_JWT_EXPIRATION_MINUTES"

	EnvMPAccessToken   = "PACKRESCUE_MP_ACCESS_TOKEN"
	EnvMPWebhookSecret = "PACKRESCUE_MP_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
