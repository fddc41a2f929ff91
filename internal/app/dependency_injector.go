package app

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/you-humble/videogen/internal/dispatcher"
	"github.com/you-humble/videogen/internal/driver"
	"github.com/you-humble/videogen/internal/events"
	"github.com/you-humble/videogen/internal/infra/backend/luma"
	"github.com/you-humble/videogen/internal/infra/backend/mmaudio"
	"github.com/you-humble/videogen/internal/infra/blob"
	"github.com/you-humble/videogen/internal/infra/config"
	"github.com/you-humble/videogen/internal/infra/queue"
	taskstore "github.com/you-humble/videogen/internal/infra/store/task"
	mio "github.com/you-humble/videogen/internal/libs/minio"
	natsq "github.com/you-humble/videogen/internal/libs/nats"
	rediscli "github.com/you-humble/videogen/internal/libs/redis"
	"github.com/you-humble/videogen/internal/transport"
	"github.com/you-humble/videogen/internal/usecase"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const cfgPath = "./configs/local.yaml"

type Router interface {
	MountRoutes(*http.ServeMux) *http.ServeMux
}

type Dispatcher interface {
	Run(ctx context.Context)
}

// taskStoreDep, taskQueueDep and blobStoreDep name the intersections of the
// consumer-side interfaces each adapter has to satisfy.
type taskStoreDep interface {
	usecase.TaskStore
	dispatcher.TaskStore
}

type taskQueueDep interface {
	usecase.TaskQueue
	dispatcher.PendingQueue
}

type blobStoreDep interface {
	driver.BlobStore
	usecase.FileStore
}

type dependencyInjector struct {
	cfg    *config.Config
	logger *slog.Logger

	redis     *redis.Client
	taskStore taskStoreDep
	taskQueue taskQueueDep

	blobs blobStoreDep

	genClient   driver.GenerationBackend
	audioClient driver.AudioSynthesizer
	jobDriver   dispatcher.JobDriver

	natsConn *nats.Conn
	js       nats.JetStreamContext
	events   dispatcher.EventPublisher

	dispatcher Dispatcher

	usecase transport.Usecase
	handler transport.Handler
	router  Router
}

func newDI() *dependencyInjector {
	return &dependencyInjector{}
}

func (di *dependencyInjector) Config() *config.Config {
	if di.cfg == nil {
		di.cfg = config.MustLoad(cfgPath)
	}

	return di.cfg
}

func (di *dependencyInjector) Logger() *slog.Logger {
	if di.logger == nil {
		di.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	slog.SetDefault(di.logger)
	return di.logger
}

func (di *dependencyInjector) RedisClient(ctx context.Context) *redis.Client {
	if di.redis == nil {
		cfg := di.Config().Redis
		client, err := rediscli.NewClient(rediscli.Config{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			log.Fatalf("redis client: %+v", err)
		}

		di.redis = client
		di.Logger().Info("connected to redis", slog.String("addr", cfg.Addr))
	}
	return di.redis
}

func (di *dependencyInjector) TaskStore(ctx context.Context) taskStoreDep {
	if di.taskStore == nil {
		di.taskStore = taskstore.NewRedisTaskStore(di.RedisClient(ctx))
	}
	return di.taskStore
}

func (di *dependencyInjector) TaskQueue(ctx context.Context) taskQueueDep {
	if di.taskQueue == nil {
		di.taskQueue = queue.New(di.RedisClient(ctx))
	}
	return di.taskQueue
}

func (di *dependencyInjector) BlobStore(ctx context.Context) blobStoreDep {
	if di.blobs == nil {
		cfg := di.Config().MinIO

		blobs, err := blob.NewMinIOStore(ctx, mio.Config{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.UseSSL,
			Bucket:          cfg.Bucket,
		})
		if err != nil {
			log.Fatalf("BlobStore minio: %+v", err)
		}

		di.blobs = blobs
		di.Logger().Info(
			"initialized MinIO blob store",
			slog.String("endpoint", cfg.Endpoint),
			slog.String("bucket", cfg.Bucket),
		)
	}
	return di.blobs
}

func (di *dependencyInjector) GenerationClient(ctx context.Context) driver.GenerationBackend {
	if di.genClient == nil {
		cfg := di.Config().Generation
		di.genClient = luma.NewClient(luma.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
	}
	return di.genClient
}

func (di *dependencyInjector) AudioClient(ctx context.Context) driver.AudioSynthesizer {
	if di.audioClient == nil {
		cfg := di.Config().Audio
		di.audioClient = mmaudio.NewClient(mmaudio.Config{
			BaseURL:     cfg.BaseURL,
			Timeout:     cfg.Timeout,
			Seed:        cfg.Seed,
			NumSteps:    cfg.NumSteps,
			CFGStrength: cfg.CFGStrength,
			DurationSec: cfg.DurationSec,
		})
	}
	return di.audioClient
}

func (di *dependencyInjector) JobDriver(ctx context.Context) dispatcher.JobDriver {
	if di.jobDriver == nil {
		cfg := di.Config()
		di.jobDriver = driver.New(
			di.GenerationClient(ctx),
			di.AudioClient(ctx),
			di.BlobStore(ctx),
			cfg.WorkDir,
			cfg.JobPollInterval,
		)
	}
	return di.jobDriver
}

func (di *dependencyInjector) NATSConn(ctx context.Context) *nats.Conn {
	if di.natsConn == nil {
		cfg := di.Config()
		nc, err := natsq.NewConnect(cfg.NATS.URL, natsq.Config{
			Name:          cfg.NATS.QueueName,
			MaxReconnects: cfg.NATS.MaxReconnects,
		})
		if err != nil {
			log.Fatalf("NATS connect: %+v", err)
		}
		di.natsConn = nc
	}
	return di.natsConn
}

func (di *dependencyInjector) JetStream(ctx context.Context) nats.JetStreamContext {
	if di.js == nil {
		js, err := natsq.NewTaskStream(di.NATSConn(ctx), di.Config().NATS.Subject)
		if err != nil {
			log.Fatalf("DI JetStream: %+v", err)
		}

		di.js = js
	}
	return di.js
}

func (di *dependencyInjector) Events(ctx context.Context) dispatcher.EventPublisher {
	if di.events == nil {
		cfg := di.Config().NATS
		if !cfg.Enabled {
			di.events = events.NewNoopPublisher()
			return di.events
		}

		di.events = events.NewNATSPublisher(di.JetStream(ctx), cfg.Subject)
		di.Logger().Info("task events enabled", slog.String("subject", cfg.Subject))
	}
	return di.events
}

func (di *dependencyInjector) Dispatcher(ctx context.Context) Dispatcher {
	if di.dispatcher == nil {
		cfg := di.Config()
		di.dispatcher = dispatcher.New(
			di.TaskQueue(ctx),
			di.TaskStore(ctx),
			di.JobDriver(ctx),
			di.Events(ctx),
			cfg.MaxConcurrent,
			cfg.QueuePollInterval,
		)
	}
	return di.dispatcher
}

func (di *dependencyInjector) Usecase(ctx context.Context) transport.Usecase {
	if di.usecase == nil {
		di.usecase = usecase.New(
			di.TaskStore(ctx),
			di.TaskQueue(ctx),
			di.BlobStore(ctx),
		)
	}

	return di.usecase
}

func (di *dependencyInjector) Handler(ctx context.Context) transport.Handler {
	if di.handler == nil {
		di.handler = transport.NewHandler(di.Config().MaxUploadBytesMb, di.Usecase(ctx))
	}

	return di.handler
}

func (di *dependencyInjector) Router(ctx context.Context) Router {
	if di.router == nil {
		di.router = transport.NewRouter(di.Handler(ctx))
	}

	return di.router
}
