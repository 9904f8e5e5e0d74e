package cli

import (
	"flag"
	"os"
	"path/filepath"
)

// Flags holds every startup configuration value, parsed once in ParseFlags
// and handed to the component constructors — nothing after startup
// re-reads configuration.
var Flags struct {
	HTTPHost string
	HTTPPort string
	HTTPSock string

	MaxSize     int64
	UploadDir   string
	DirTemplate string
	ForceFsync  bool
	BasePath    string

	DisableDownload        bool
	DisableTermination     bool
	RemovePartsAfterConcat bool

	DisableCors       bool
	CorsAllowOrigin   string
	CorsAllowCreds    bool
	CorsAllowMethods  string
	CorsAllowHeaders  string
	CorsMaxAge        string
	CorsExposeHeaders string

	BehindProxy bool

	// InfoBackend and BlobBackend select the storage backend: "filesystem"
	// (default), "sql" or "redis" for info; "filesystem" (default) or
	// "hybrid-s3" for blobs.
	InfoBackend string
	BlobBackend string

	SQLDriver string
	SQLDSN    string
	SQLTable  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	S3Bucket       string
	S3ObjectPrefix string
	S3Endpoint     string

	HooksFormat         string
	HooksSubprocessDir  string
	HooksSubprocessPath string
	HooksHTTPEndpoint   string
	HooksHTTPRetry      int
	HooksHTTPBackoff    int
	HooksAMQPURL        string
	HooksAMQPExchange   string
	HooksKafkaBrokers   string
	HooksKafkaTopic     string
	HooksNatsURL        string
	HooksNatsSubject    string

	ExposeMetrics bool
	MetricsPath   string

	LogLevel string

	ShutdownTimeout int

	ShowVersion bool
}

// ParseFlags parses os.Args into Flags, following the shape of the
// teacher's cmd/tusd/cli/flags.go one flag at a time.
func ParseFlags() {
	flag.StringVar(&Flags.HTTPHost, "host", "0.0.0.0", "Host to bind the HTTP server to")
	flag.StringVar(&Flags.HTTPPort, "port", "1080", "Port to bind the HTTP server to")
	flag.StringVar(&Flags.HTTPSock, "unix-sock", "", "If set, listen on a UNIX socket at this path instead of a TCP socket")

	flag.Int64Var(&Flags.MaxSize, "max-size", 0, "Maximum size of a single upload in bytes (0 means unlimited)")
	flag.StringVar(&Flags.UploadDir, "upload-dir", "./data", "Directory used by the filesystem and hybrid-s3 blob backends")
	flag.StringVar(&Flags.DirTemplate, "dir-template", "", "Template expanding {year} {month} {day} {hour} {minute} and {env[NAME]} tokens into a subdirectory under upload-dir (and, for hybrid-s3, into the object key); falls back to a flat layout if a token cannot be resolved")
	flag.BoolVar(&Flags.ForceFsync, "force-fsync", false, "fsync every write to the filesystem and hybrid-s3 blob backends before acknowledging it")
	flag.StringVar(&Flags.BasePath, "base-path", "/files/", "Base path of the upload HTTP surface")

	flag.BoolVar(&Flags.DisableDownload, "disable-download", false, "Disable the GET retrieval extension")
	flag.BoolVar(&Flags.DisableTermination, "disable-termination", false, "Disable the DELETE termination extension")
	flag.BoolVar(&Flags.RemovePartsAfterConcat, "remove-parts-after-concat", false, "Delete partial uploads once they have been folded into a final upload")

	flag.BoolVar(&Flags.DisableCors, "disable-cors", false, "Disable CORS headers entirely")
	flag.StringVar(&Flags.CorsAllowOrigin, "cors-allow-origin", ".*", "Regular expression for allowed CORS origins")
	flag.BoolVar(&Flags.CorsAllowCreds, "cors-allow-credentials", false, "Set Access-Control-Allow-Credentials: true")
	flag.StringVar(&Flags.CorsAllowMethods, "cors-allow-methods", "", "Extra methods appended to Access-Control-Allow-Methods")
	flag.StringVar(&Flags.CorsAllowHeaders, "cors-allow-headers", "", "Extra headers appended to Access-Control-Allow-Headers")
	flag.StringVar(&Flags.CorsMaxAge, "cors-max-age", "86400", "Access-Control-Max-Age value")
	flag.StringVar(&Flags.CorsExposeHeaders, "cors-expose-headers", "", "Extra headers appended to Access-Control-Expose-Headers")

	flag.BoolVar(&Flags.BehindProxy, "behind-proxy", false, "Has no effect: X-Forwarded-Proto and X-Forwarded-Host are always honored when building Location URLs")

	flag.StringVar(&Flags.InfoBackend, "info-backend", "filesystem", "Upload metadata backend: filesystem, sql or redis")
	flag.StringVar(&Flags.BlobBackend, "blob-backend", "filesystem", "Upload data backend: filesystem or hybrid-s3")

	flag.StringVar(&Flags.SQLDriver, "sql-driver", "sqlite3", "SQL driver for the sql info backend: mysql, pgx or sqlite3")
	flag.StringVar(&Flags.SQLDSN, "sql-dsn", "", "Data source name for the sql info backend")
	flag.StringVar(&Flags.SQLTable, "sql-table", "uploads", "Table name for the sql info backend")

	flag.StringVar(&Flags.RedisAddr, "redis-addr", "127.0.0.1:6379", "Address of the redis info backend")
	flag.StringVar(&Flags.RedisPassword, "redis-password", "", "Password for the redis info backend (falls back to REDIS_PASSWORD)")
	flag.IntVar(&Flags.RedisDB, "redis-db", 0, "Database index for the redis info backend")
	flag.StringVar(&Flags.RedisPrefix, "redis-prefix", "tusgate:", "Key prefix for the redis info backend")

	flag.StringVar(&Flags.S3Bucket, "s3-bucket", "", "S3 bucket used by the hybrid-s3 blob backend (requires AWS credentials in the environment)")
	flag.StringVar(&Flags.S3ObjectPrefix, "s3-object-prefix", "", "Prefix for S3 object keys")
	flag.StringVar(&Flags.S3Endpoint, "s3-endpoint", "", "Custom S3 endpoint, for S3-compatible services like MinIO")

	flag.StringVar(&Flags.HooksFormat, "hooks-format", "default", "Hook payload serialization format: default, v2 or tusd")
	flag.StringVar(&Flags.HooksSubprocessDir, "hooks-dir", "", "Directory of per-event hook scripts")
	flag.StringVar(&Flags.HooksSubprocessPath, "hooks-file", "", "Single hook script invoked for every event, event kind as argv[1] and payload as argv[2]")
	flag.StringVar(&Flags.HooksHTTPEndpoint, "hooks-http", "", "HTTP endpoint to POST hook events to")
	flag.IntVar(&Flags.HooksHTTPRetry, "hooks-http-retry", 3, "Number of retries for the HTTP hook transport")
	flag.IntVar(&Flags.HooksHTTPBackoff, "hooks-http-backoff", 1, "Seconds to wait between HTTP hook retries")
	flag.StringVar(&Flags.HooksAMQPURL, "hooks-amqp-url", "", "AMQP broker URL to publish hook events to")
	flag.StringVar(&Flags.HooksAMQPExchange, "hooks-amqp-exchange", "tusgate.hooks", "AMQP exchange to publish hook events to")
	flag.StringVar(&Flags.HooksKafkaBrokers, "hooks-kafka-brokers", "", "Comma-separated Kafka broker addresses to publish hook events to")
	flag.StringVar(&Flags.HooksKafkaTopic, "hooks-kafka-topic", "tusgate.hooks", "Kafka topic to publish hook events to")
	flag.StringVar(&Flags.HooksNatsURL, "hooks-nats-url", "", "NATS server URL to publish hook events to")
	flag.StringVar(&Flags.HooksNatsSubject, "hooks-nats-subject", "tusgate.hooks.", "NATS subject prefix for hook events")

	flag.BoolVar(&Flags.ExposeMetrics, "expose-metrics", true, "Expose a Prometheus /metrics endpoint")
	flag.StringVar(&Flags.MetricsPath, "metrics-path", "/metrics", "Path under which the metrics endpoint is served")

	flag.StringVar(&Flags.LogLevel, "log-level", "info", "Minimum log level: debug, info, warn or error")
	flag.IntVar(&Flags.ShutdownTimeout, "shutdown-timeout", 10, "Seconds to wait for in-flight requests to drain on shutdown")
	flag.BoolVar(&Flags.ShowVersion, "version", false, "Print version information and exit")

	flag.Parse()

	if Flags.HooksSubprocessDir != "" {
		if abs, err := filepath.Abs(Flags.HooksSubprocessDir); err == nil {
			Flags.HooksSubprocessDir = abs
		}
	}
	if Flags.HooksSubprocessPath != "" {
		if abs, err := filepath.Abs(Flags.HooksSubprocessPath); err == nil {
			Flags.HooksSubprocessPath = abs
		}
	}
	if Flags.RedisPassword == "" {
		Flags.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}
}
