package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"

	tfconfig "github.com/tourflow/tourflow/config"
	"github.com/tourflow/tourflow/internal/httpx"
	previewhandler "github.com/tourflow/tourflow/internal/preview/handler"
	"github.com/tourflow/tourflow/pkg/analytics"
	"github.com/tourflow/tourflow/pkg/embedstore"
	embedapi "github.com/tourflow/tourflow/pkg/embedstore/api"
	"github.com/tourflow/tourflow/pkg/tour"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWithOIDC[tfconfig.TourflowConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	ctx, srv := frame.NewService(
		frame.WithConfig(&cfg),
		frame.WithName("tourflow"),
		frame.WithRegisterServerOauth2Client(),
		frame.WithDatastore(),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	// Obtain the frame authenticator for JWT validation.
	authenticator := srv.SecurityManager().GetAuthenticator(ctx)

	// --- Embed configs ---
	repo := embedstore.NewRepository(
		srv.DatastoreManager().GetPool(ctx, "__default__pool_name__"),
	)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("migrating embed configs: %v", err)
	}

	// --- Tours ---
	loader := tour.NewLoader(cfg.TourDir)
	if _, err := loader.LoadAll(); err != nil {
		slog.WarnContext(ctx, "loading tours", slog.String("dir", cfg.TourDir), slog.String("error", err.Error()))
	}
	if cfg.TourWatch {
		watch := func() {
			if err := loader.WatchAndReload(ctx.Done()); err != nil {
				slog.WarnContext(ctx, "tour watcher stopped", slog.String("error", err.Error()))
			}
		}
		if err := pool.Submit(ctx, watch); err != nil {
			go watch()
		}
	}

	// --- Analytics ---
	// Preview events go onto the events queue. When a sink is configured the
	// relay subscriber drains the queue into it.
	previewEvents := analytics.NewEmitter(
		analytics.NewQueueSink(srv.QueueManager(), "preview", eventRef),
		cfg.EmitterConfig(), pool)
	defer func() { _ = previewEvents.Close(ctx) }()

	var relaySub *analytics.Subscriber
	if cfg.AnalyticsSinkURL != "" {
		sink, err := analytics.NewHTTPSink(cfg.SinkConfig(), cfg.SinkValidation()...)
		if err != nil {
			log.Fatalf("analytics sink: %v", err)
		}
		relay := analytics.NewEmitter(sink, cfg.EmitterConfig(), pool)
		defer func() { _ = relay.Close(ctx) }()
		relaySub = &analytics.Subscriber{Emitter: relay}
	}

	// --- Previews ---
	previews := previewhandler.NewPreviewHandler(previewhandler.Options{
		Source:         loader,
		Configs:        repo,
		Forward:        previewEvents,
		Policy:         cfg.Policy(),
		ResolveTimeout: cfg.ResolveTimeout(),
		IdleTimeout:    cfg.IdleTimeout(),
		TTL:            cfg.PreviewTTL(),
		Pool:           pool,
	})
	previews.StartReaper(ctx)

	// --- HTTP Mux ---
	restMux := http.NewServeMux()
	embedapi.NewHandler(repo, cfg.EmbedOrigin).RegisterRoutes(restMux)
	previews.RegisterRoutes(restMux)

	mux := http.NewServeMux()
	mux.Handle("/api/", httpx.Authenticated(restMux, authenticator))

	handler := httpx.H2CHandler(httpx.Logging(httpx.CORS(cfg.Origins(), mux)))

	if relaySub != nil {
		srv.Init(ctx,
			frame.WithRegisterSubscriber(eventRef+".analytics", eventURL, relaySub),
			frame.WithHTTPHandler(handler),
		)
	} else {
		srv.Init(ctx, frame.WithHTTPHandler(handler))
	}

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}
