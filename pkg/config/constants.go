package config

const (
	// EnvPrefix is used by envconfig when processing the environment.
	EnvPrefix = "wareflow"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "WAREFLOW_APP_ENV"
	EnvPort       = "WAREFLOW_APP_PORT"
	EnvDBDSN      = "WAREFLOW_DB_DSN"
	EnvDBHost     = "WAREFLOW_DB_HOST"
	EnvDBUser     = "WAREFLOW_DB_USER"
	EnvDBName     = "WAREFLOW_DB_NAME"
	EnvRedisURL   = "WAREFLOW_REDIS_URL"
	EnvJWTSecret  = "WAREFLOW_JWT_SECRET"
	EnvJWTIssuer  = "WAREFLOW_JWT_ISSUER"
	EnvJWTExpMins = "WAREFLOW_JWT_EXPIRATION_MINUTES"

	EnvPubSubDomainTopic = "WAREFLOW_PUBSUB_DOMAIN_EVENTS_TOPIC"
	EnvPubSubDomainSub   = "WAREFLOW_PUBSUB_DOMAIN_EVENTS_SUBSCRIPTION"
)

// fallbackDBEnvVars are checked when no full DSN is provided.
var fallbackDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
