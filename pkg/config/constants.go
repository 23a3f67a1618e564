package config

const (
	EnvPrefix = "chainpos"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CHAINPOS_DB_DSN"
	EnvDBHost = "CHAINPOS_DB_HOST"
	EnvDBUser = "CHAINPOS_DB_USER"
	EnvDBName = "CHAINPOS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
