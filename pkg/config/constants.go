package config

const EnvPrefix = "CONSENT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "CONSENT_APP_ENV"
	EnvPort     = "CONSENT_APP_PORT"
	EnvDBDSN    = "CONSENT_DB_DSN"
	EnvDBHost   = "CONSENT_DB_HOST"
	EnvDBUser   = "CONSENT_DB_USER"
	EnvDBName   = "CONSENT_DB_NAME"
	EnvLogLevel = "CONSENT_LOG_LEVEL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
