package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"

	"github.com/tusgate/tusgate/pkg/blobstore/filesystem"
	"github.com/tusgate/tusgate/pkg/blobstore/hybrid"
	"github.com/tusgate/tusgate/pkg/engine"
	"github.com/tusgate/tusgate/pkg/hookdispatch"
	"github.com/tusgate/tusgate/pkg/hooks/amqphook"
	"github.com/tusgate/tusgate/pkg/hooks/httphook"
	"github.com/tusgate/tusgate/pkg/hooks/kafkahook"
	"github.com/tusgate/tusgate/pkg/hooks/natshook"
	"github.com/tusgate/tusgate/pkg/hooks/subprocess"
	infofs "github.com/tusgate/tusgate/pkg/infostore/filesystem"
	inforedis "github.com/tusgate/tusgate/pkg/infostore/redis"
	infosql "github.com/tusgate/tusgate/pkg/infostore/sql"
)

// BuildInfoStore selects and constructs the InfoStore backend named by
// Flags.InfoBackend, mirroring the teacher's CreateComposer branching on
// which storage flag was supplied.
func BuildInfoStore(ctx context.Context, log *slog.Logger) (engine.InfoStore, error) {
	switch Flags.InfoBackend {
	case "sql":
		driverName := Flags.SQLDriver
		db, err := sqlx.ConnectContext(ctx, driverName, Flags.SQLDSN)
		if err != nil {
			return nil, fmt.Errorf("connecting to sql info backend: %w", err)
		}
		store := infosql.New(db, Flags.SQLTable)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensuring sql schema: %w", err)
		}
		log.Info("using sql info backend", "driver", driverName, "table", Flags.SQLTable)
		return store, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     Flags.RedisAddr,
			Password: Flags.RedisPassword,
			DB:       Flags.RedisDB,
		})
		log.Info("using redis info backend", "addr", Flags.RedisAddr)
		return inforedis.New(client, Flags.RedisPrefix), nil

	default:
		dir, err := filepath.Abs(Flags.UploadDir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o774); err != nil {
			return nil, fmt.Errorf("ensuring upload directory exists: %w", err)
		}
		log.Info("using filesystem info backend", "dir", dir)
		return infofs.New(dir), nil
	}
}

// BuildBlobStore selects and constructs the BlobStore backend named by
// Flags.BlobBackend.
func BuildBlobStore(ctx context.Context, log *slog.Logger) (engine.BlobStore, error) {
	dir, err := filepath.Abs(Flags.UploadDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o774); err != nil {
		return nil, fmt.Errorf("ensuring upload directory exists: %w", err)
	}

	if Flags.BlobBackend != "hybrid-s3" {
		log.Info("using filesystem blob backend", "dir", dir, "dirTemplate", Flags.DirTemplate)
		return filesystem.New(dir, filesystem.WithDirTemplate(Flags.DirTemplate), filesystem.WithForceFsync(Flags.ForceFsync)), nil
	}
	if Flags.S3Bucket == "" {
		return nil, fmt.Errorf("blob-backend=hybrid-s3 requires -s3-bucket")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading aws configuration: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if Flags.S3Endpoint != "" {
			o.BaseEndpoint = &Flags.S3Endpoint
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client)

	log.Info("using hybrid-s3 blob backend", "bucket", Flags.S3Bucket, "dir", dir, "dirTemplate", Flags.DirTemplate)
	return hybrid.New(dir, Flags.S3Bucket, Flags.S3ObjectPrefix, uploader, client,
		hybrid.WithDirTemplate(Flags.DirTemplate), hybrid.WithForceFsync(Flags.ForceFsync)), nil
}

// BuildDispatcher assembles a hookdispatch.Dispatcher from whichever hook
// transports were configured on the command line. An empty set of entries
// still produces a working dispatcher that simply never fires.
func BuildDispatcher(log *slog.Logger, recorder hookdispatch.MetricsRecorder) (engine.Dispatcher, error) {
	var entries []hookdispatch.Entry
	format := hooksFormat()

	if Flags.HooksSubprocessDir != "" || Flags.HooksSubprocessPath != "" {
		n := subprocess.Notifier{Directory: Flags.HooksSubprocessDir, Path: Flags.HooksSubprocessPath, Format: format}
		entries = append(entries, hookdispatch.Entry{Name: "subprocess", Notifier: n, Blocking: true})
	}

	if Flags.HooksHTTPEndpoint != "" {
		n := &httphook.Notifier{
			Endpoint:   Flags.HooksHTTPEndpoint,
			MaxRetries: Flags.HooksHTTPRetry,
			Backoff:    time.Duration(Flags.HooksHTTPBackoff) * time.Second,
			Timeout:    30 * time.Second,
			SizeLimit:  1 << 20,
			Format:     format,
		}
		entries = append(entries, hookdispatch.Entry{Name: "http", Notifier: n, Blocking: true})
	}

	if Flags.HooksAMQPURL != "" {
		n := &amqphook.Notifier{URL: Flags.HooksAMQPURL, Exchange: Flags.HooksAMQPExchange, RoutingPrefix: "tusgate.", Format: format}
		entries = append(entries, hookdispatch.Entry{
			Name: "amqp", Notifier: n, Blocking: false,
			Events: postOnlyEvents(),
		})
	}

	if Flags.HooksKafkaBrokers != "" {
		n := &kafkahook.Notifier{Brokers: strings.Split(Flags.HooksKafkaBrokers, ","), Topic: Flags.HooksKafkaTopic, Format: format}
		entries = append(entries, hookdispatch.Entry{
			Name: "kafka", Notifier: n, Blocking: false,
			Events: postOnlyEvents(),
		})
	}

	if Flags.HooksNatsURL != "" {
		n := &natshook.Notifier{URL: Flags.HooksNatsURL, SubjectPrefix: Flags.HooksNatsSubject, Format: format}
		entries = append(entries, hookdispatch.Entry{
			Name: "nats", Notifier: n, Blocking: false,
			Events: postOnlyEvents(),
		})
	}

	if len(entries) == 0 {
		return engine.NopDispatcher{}, nil
	}

	return hookdispatch.New(entries, log, recorder)
}

// hooksFormat maps the -hooks-format flag to a hookdispatch.Format,
// defaulting to FormatDefault for an unrecognized value.
func hooksFormat() hookdispatch.Format {
	switch Flags.HooksFormat {
	case string(hookdispatch.FormatTusd), "tusd-compatible":
		return hookdispatch.FormatTusd
	case string(hookdispatch.FormatV2):
		return hookdispatch.FormatV2
	default:
		return hookdispatch.FormatDefault
	}
}

func postOnlyEvents() map[engine.EventKind]bool {
	return map[engine.EventKind]bool{
		engine.EventPostCreate:    true,
		engine.EventPostReceive:   true,
		engine.EventPostTerminate: true,
		engine.EventPostFinish:    true,
	}
}

