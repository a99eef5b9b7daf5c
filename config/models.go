package config

const (
	LNDBackendType = "LND"
	CLNBackendType = "CLN"
)

type AppConfig struct {
	Workdir      string `envconfig:"WORK_DIR"`
	Port         string `envconfig:"PORT" default:"3030"`
	DatabaseUri  string `envconfig:"DATABASE_URI" default:"nodegaze.db"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"4"`
	LogToFile    bool   `envconfig:"LOG_TO_FILE" default:"true"`
	LogDBQueries bool   `envconfig:"LOG_DB_QUERIES" default:"false"`
	JWTSecret    string `envconfig:"JWT_SECRET"`
	MempoolApi   string `envconfig:"MEMPOOL_API" default:"https://mempool.space/api"`

	// Optional backend settings used to connect a node at startup instead of
	// waiting for an API call.
	LNBackendType     string `envconfig:"LN_BACKEND_TYPE"`
	NodeId            string `envconfig:"NODE_ID"`
	LNDAddress        string `envconfig:"LND_ADDRESS"`
	LNDCertFile       string `envconfig:"LND_CERT_FILE"`
	LNDMacaroonFile   string `envconfig:"LND_MACAROON_FILE"`
	CLNAddress        string `envconfig:"CLN_ADDRESS"`
	CLNCaCertFile     string `envconfig:"CLN_CA_CERT_FILE"`
	CLNClientCertFile string `envconfig:"CLN_CLIENT_CERT_FILE"`
	CLNClientKeyFile  string `envconfig:"CLN_CLIENT_KEY_FILE"`
}
