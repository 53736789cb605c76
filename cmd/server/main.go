package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/renewly/renewly/internal/api"
	"github.com/renewly/renewly/internal/api/cron"
	"github.com/renewly/renewly/internal/cache"
	"github.com/renewly/renewly/internal/config"
	"github.com/renewly/renewly/internal/domain/planchange"
	"github.com/renewly/renewly/internal/domain/preorder"
	"github.com/renewly/renewly/internal/domain/product"
	"github.com/renewly/renewly/internal/domain/purchase"
	"github.com/renewly/renewly/internal/domain/subscription"
	"github.com/renewly/renewly/internal/domain/workqueue"
	"github.com/renewly/renewly/internal/email"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/monitor"
	"github.com/renewly/renewly/internal/notifications"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/processor"
	stripeProcessor "github.com/renewly/renewly/internal/processor/stripe"
	redisClient "github.com/renewly/renewly/internal/redis"
	"github.com/renewly/renewly/internal/repository"
	pgRepo "github.com/renewly/renewly/internal/repository/postgres"
	"github.com/renewly/renewly/internal/service"
	"github.com/renewly/renewly/internal/temporal/activities/billing"
	temporalWorker "github.com/renewly/renewly/internal/temporal/worker"
	"github.com/renewly/renewly/internal/types"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			monitor.NewReporter,
			types.NewRealClock,
			postgres.NewClient,
			newDBClient,
			newRedisClient,
			newCache,
			repository.NewSubscriptionRepository,
			repository.NewPurchaseRepository,
			repository.NewPlanChangeRepository,
			repository.NewPreorderRepository,
			repository.NewProductRepository,
			repository.NewScheduledJobRepository,
			pgRepo.NewContactDirectory,
			email.NewEmailClient,
			newMailer,
			newNotifier,
			stripeProcessor.NewClient,
			newServiceParams,
			service.NewEligibilityService,
			service.NewPlanChangeService,
			service.NewRecurringChargeService,
			service.NewPreorderChargeService,
			service.NewAbandonedAuthService,
			service.NewSweepService,
			service.NewDispatchService,
			billing.NewBillingActivities,
			cron.NewBillingCronHandler,
			api.NewRouter,
		),
		fx.Invoke(startServer),
		fx.Invoke(startWorker),
	)

	app.Run()
}

func newDBClient(client *postgres.Client) postgres.IClient {
	return client
}

// newRedisClient connects to redis only when the redis cache backend is
// configured; otherwise the process runs without it.
func newRedisClient(cfg *config.Configuration, log *logger.Logger) *redisClient.Client {
	if cache.CacheType(cfg.Cache.Type) != cache.CacheTypeRedis {
		return nil
	}
	client, err := redisClient.NewClient(cfg, log)
	if err != nil {
		log.Errorw("failed to connect to redis, falling back to in-memory cache", "error", err)
		return nil
	}
	return client
}

func newCache(cfg *config.Configuration, log *logger.Logger, redis *redisClient.Client) cache.Cache {
	return cache.Initialize(cfg, log, redis)
}

func newMailer(cfg *config.Configuration, client *email.EmailClient, directory email.Directory, log *logger.Logger) email.Mailer {
	if !client.IsEnabled() {
		log.Infow("email disabled, notices will be dropped")
		return email.NoopMailer{}
	}
	return email.NewEmail(client, directory, log)
}

func newNotifier(log *logger.Logger) notifications.WorkflowNotifier {
	return notifications.NewLogNotifier(log)
}

func newServiceParams(
	cfg *config.Configuration,
	log *logger.Logger,
	clock types.Clock,
	db postgres.IClient,
	subRepo subscription.Repository,
	purchaseRepo purchase.Repository,
	planChangeRepo planchange.Repository,
	preorderRepo preorder.Repository,
	productRepo product.Repository,
	jobRepo workqueue.Repository,
	proc processor.ChargeProcessor,
	mailer email.Mailer,
	notifier notifications.WorkflowNotifier,
	reporter monitor.Reporter,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:         log,
		Config:         cfg,
		Clock:          clock,
		DB:             db,
		SubRepo:        subRepo,
		PurchaseRepo:   purchaseRepo,
		PlanChangeRepo: planChangeRepo,
		PreorderRepo:   preorderRepo,
		ProductRepo:    productRepo,
		JobRepo:        jobRepo,
		Processor:      proc,
		Mailer:         mailer,
		Notifier:       notifier,
		Reporter:       reporter,
	}
}

func startServer(lc fx.Lifecycle, cfg *config.Configuration, router *gin.Engine, log *logger.Logger) {
	if cfg.Deployment.Mode == config.ModeWorker {
		return
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting http server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorw("http server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping http server")
			return srv.Shutdown(ctx)
		},
	})
}

func startWorker(lc fx.Lifecycle, cfg *config.Configuration, acts *billing.BillingActivities, log *logger.Logger) {
	if cfg.Deployment.Mode == config.ModeServer {
		return
	}

	w, err := temporalWorker.New(cfg, acts, log)
	if err != nil {
		log.Errorw("temporal worker unavailable, cron endpoints remain the only trigger", "error", err)
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return w.Start()
		},
		OnStop: func(ctx context.Context) error {
			w.Stop()
			return nil
		},
	})
}
