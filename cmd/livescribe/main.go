package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"

	lsconfig "github.com/livescribe/livescribe/config"
	"github.com/livescribe/livescribe/internal/api"
	"github.com/livescribe/livescribe/internal/breaker"
	"github.com/livescribe/livescribe/internal/httputil"
	"github.com/livescribe/livescribe/pkg/enrich"
	"github.com/livescribe/livescribe/pkg/events"
	"github.com/livescribe/livescribe/pkg/language"
	"github.com/livescribe/livescribe/pkg/store"
	"github.com/livescribe/livescribe/pkg/urlvalidation"
	"github.com/livescribe/livescribe/pkg/webhook"
	webhookapi "github.com/livescribe/livescribe/pkg/webhook/api"
)

const defaultPoolName = "__default__pool_name__"

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWithOIDC[lsconfig.LiveScribeConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()
	useDatastore := cfg.StoreBackend == "gorm" || cfg.WebhooksEnabled

	opts := []frame.Option{
		frame.WithConfig(&cfg),
		frame.WithName("livescribe"),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	}
	if cfg.AuthEnabled {
		opts = append(opts, frame.WithRegisterServerOauth2Client())
	}
	if useDatastore {
		opts = append(opts, frame.WithDatastore())
	}

	ctx, srv := frame.NewService(opts...)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	pub := events.NewPublisher(srv.QueueManager(), "livescribe", eventRef)

	// --- Session store ---
	var st store.Store
	switch cfg.StoreBackend {
	case "gorm":
		st, err = store.NewGormStore(ctx, srv.DatastoreManager().GetPool(ctx, defaultPoolName))
	default:
		st, err = store.OpenSQLite(ctx, cfg.SQLitePath)
	}
	if err != nil {
		log.Fatalf("opening %s store: %v", cfg.StoreBackend, err)
	}
	defer st.Close()

	// --- AI enrichment ---
	var provider enrich.Provider
	if cfg.AIProvider != "" && cfg.AIProvider != "none" {
		provider, err = enrich.NewProvider(cfg.AIProvider, cfg.ProviderConfig())
		if err != nil {
			slog.WarnContext(ctx, "AI provider unavailable, enrichment degrades to defaults",
				slog.String("provider", cfg.AIProvider), slog.String("error", err.Error()))
		}
	}
	ai := enrich.NewClient(provider, enrich.WithBreaker(breaker.Config{
		FailureThreshold: cfg.CBFailThreshold,
		ResetTimeout:     lsconfig.Seconds(cfg.CBResetTimeoutSec),
	}))

	// --- Language heuristic ---
	keywords := language.NewLoader(cfg.KeywordDir)
	if err := keywords.LoadAll(); err != nil {
		log.Printf("warning: loading keyword profiles: %v", err)
	}
	go func() {
		if err := keywords.WatchAndReload(ctx.Done()); err != nil {
			slog.WarnContext(ctx, "keyword profile watcher stopped", slog.String("error", err.Error()))
		}
	}()

	// --- Live sessions ---
	live := api.NewLiveManager(api.LiveConfig{
		Backend:         cfg.ASRBackend,
		BackendConfig:   cfg.RecognizerConfig(),
		Language:        cfg.DefaultLanguage,
		EnhanceMinChars: cfg.EnhanceMinChars,
		RestartGrace:    cfg.RestartGrace(),
		AudioInterval:   cfg.AudioLevelInterval(),
		TTL:             cfg.LiveSessionTTL(),
	}, ai, keywords, pub, pool)
	live.StartReaper(ctx)
	defer live.Shutdown(context.Background())

	// --- HTTP ---
	restMux := http.NewServeMux()
	api.NewHandler(st, ai, live).RegisterRoutes(restMux)

	var initOpts []frame.Option
	if cfg.WebhooksEnabled {
		var validateOpts []urlvalidation.Option
		if cfg.WebhookAllowPrivate {
			validateOpts = append(validateOpts, urlvalidation.AllowPrivateIPs())
		}
		whRepo, err := webhook.NewRepository(ctx, srv.DatastoreManager().GetPool(ctx, defaultPoolName))
		if err != nil {
			log.Fatalf("opening webhook repository: %v", err)
		}
		whDeliverer := webhook.NewDeliverer(whRepo, webhook.DelivererConfig{
			TimeoutSec:        cfg.WebhookTimeoutSec,
			CBFailThreshold:   cfg.WebhookCBFailThreshold,
			CBResetTimeoutSec: cfg.WebhookCBResetTimeoutSec,
		}, validateOpts...)
		webhookapi.NewHandler(whRepo, whDeliverer, validateOpts...).RegisterRoutes(restMux)
		initOpts = append(initOpts, frame.WithRegisterSubscriber(eventRef+".webhooks", eventURL, &webhook.Subscriber{
			Store:     whRepo,
			Deliverer: whDeliverer,
			Pool:      pool,
		}))
	}

	var handler http.Handler = restMux
	if cfg.AuthEnabled {
		handler = httputil.Authenticated(restMux, srv.SecurityManager().GetAuthenticator(ctx))
	}
	mux := http.NewServeMux()
	mux.Handle("/api/", httputil.Logging(handler))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	initOpts = append(initOpts, frame.WithHTTPHandler(httputil.H2CHandler(mux)))
	srv.Init(ctx, initOpts...)

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}
