package service

type Config struct {
	DatabaseUri             string  `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns        int     `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns    int     `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime int     `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	SentryDSN               string  `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate  float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	LogFilePath             string  `envconfig:"LOG_FILE_PATH"`
	JWTSecret               []byte  `envconfig:"JWT_SECRET" required:"true"`
	JWTAccessTokenExpiry    int     `envconfig:"JWT_ACCESS_EXPIRY" default:"172800"` // in seconds, default 2 days
	AdminToken              string  `envconfig:"ADMIN_TOKEN"`
	Host                    string  `envconfig:"HOST" default:"localhost:3000"`
	Port                    int     `envconfig:"PORT" default:"3000"`
	DefaultRateLimit        int     `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit         int     `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit          int     `envconfig:"BURST_RATE_LIMIT" default:"1"`

	GatewayBaseUrl      string `envconfig:"GATEWAY_BASE_URL" required:"true"`
	GatewayApiKey       string `envconfig:"GATEWAY_API_KEY"`
	GatewayTimeout      int    `envconfig:"GATEWAY_TIMEOUT" default:"30"`        // per-call timeout in seconds
	GatewayRetryTimeout int    `envconfig:"GATEWAY_RETRY_TIMEOUT" default:"120"` // total retry budget in seconds

	Currency string `envconfig:"CURRENCY" default:"usd"`
	// All amounts are minor currency units (cents).
	ServiceFeePercent int64 `envconfig:"SERVICE_FEE_PERCENT" default:"10"`
	ServiceFeeFloor   int64 `envconfig:"SERVICE_FEE_FLOOR" default:"50"`
	PayoutFeePercent  int64 `envconfig:"PAYOUT_FEE_PERCENT" default:"1"`
	PayoutFeeFixed    int64 `envconfig:"PAYOUT_FEE_FIXED" default:"25"`
	PayoutMinimum     int64 `envconfig:"PAYOUT_MINIMUM" default:"2000"`

	PayoutPollInterval int `envconfig:"PAYOUT_POLL_INTERVAL" default:"300"` // in seconds
	PayoutStaleAfter   int `envconfig:"PAYOUT_STALE_AFTER" default:"600"`   // in seconds

	RabbitMQUri                  string `envconfig:"RABBITMQ_URI"`
	RabbitMQNotificationExchange string `envconfig:"RABBITMQ_NOTIFICATION_EXCHANGE" default:"escrowhub_notifications"`
}
