package config

// EnvPrefix is the envconfig prefix shared by every service binary.
const EnvPrefix = "VASTRAHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside struct tags (tests, error
// messages). Keep in sync with the envconfig tags below.
const (
	EnvAppEnv   = "VASTRAHUB_APP_ENV"
	EnvPort     = "VASTRAHUB_APP_PORT"
	EnvDBDSN    = "VASTRAHUB_DB_DSN"
	EnvDBHost   = "VASTRAHUB_DB_HOST"
	EnvDBUser   = "VASTRAHUB_DB_USER"
	EnvDBName   = "VASTRAHUB_DB_NAME"
	EnvRedisURL = "VASTRAHUB_REDIS_URL"

	EnvJWTSecret  = "VASTRAHUB_JWT_SECRET"
	EnvJWTIssuer  = "VASTRAHUB_JWT_ISSUER"
	EnvJWTExpMins = "VASTRAHUB_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "VASTRAHUB_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic     = "VASTRAHUB_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub       = "VASTRAHUB_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubNotificationSub = "VASTRAHUB_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvGatewayKeyID  = "VASTRAHUB_GATEWAY_KEY_ID"
	EnvGatewaySecret = "VASTRAHUB_GATEWAY_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
