package cmd

import (
	"context"
	"go/types"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cmdUtils "github.com/ninjapay/payments-reconciler/cmd/utils"
	"github.com/ninjapay/payments-reconciler/db"
	"github.com/ninjapay/payments-reconciler/internal/crashtracker"
	"github.com/ninjapay/payments-reconciler/internal/crm"
	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/monitor"
	"github.com/ninjapay/payments-reconciler/internal/provider"
	"github.com/ninjapay/payments-reconciler/internal/scheduler"
	"github.com/ninjapay/payments-reconciler/internal/scheduler/jobs"
	"github.com/ninjapay/payments-reconciler/internal/serve"
	"github.com/ninjapay/payments-reconciler/internal/services"
)

type ServeCommand struct{}

// SchedulerOptions collects everything the reconciliation jobs need that is not
// part of the HTTP server options.
type SchedulerOptions struct {
	ReconcileEnabled         bool
	CrmEnabled               bool
	ReconcileIntervalSeconds int
	ReconcileBatchSize       int
	ReconcileAttemptOffsets  []int
	PollingProviders         []data.Provider
	AbandonedTimeoutMinutes  int
	HeartbeatIntervalSeconds int
	CrmRetryBackoff          []int

	ProviderOptions  provider.Options
	CrmClientOptions crm.ClientOptions
}

type ServerServiceInterface interface {
	StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface)
	StartMetricsServe(opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface)
	GetSchedulerJobRegistrars(ctx context.Context, serveOpts serve.ServeOptions, schedulerOptions SchedulerOptions) ([]scheduler.SchedulerJobRegisterOption, error)
}

type ServerService struct{}

// Making sure that ServerService implements ServerServiceInterface
var _ ServerServiceInterface = (*ServerService)(nil)

func (s *ServerService) StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface) {
	err := serve.Serve(opts, httpServer)
	if err != nil {
		log.Fatalf("Error starting server: %s", err.Error())
	}
}

func (s *ServerService) StartMetricsServe(opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface) {
	err := serve.MetricsServe(opts, httpServer)
	if err != nil {
		log.Fatalf("Error starting metrics server: %s", err.Error())
	}
}

func (s *ServerService) GetSchedulerJobRegistrars(ctx context.Context, serveOpts serve.ServeOptions, schedulerOptions SchedulerOptions) ([]scheduler.SchedulerJobRegisterOption, error) {
	dbConnectionPool, err := db.OpenDBConnectionPoolWithRetry(ctx, serveOpts.DatabaseDSN)
	if err != nil {
		log.WithContext(ctx).Fatalf("error getting DB connection in Job Scheduler: %s", err.Error())
	}
	models, err := data.NewModels(dbConnectionPool)
	if err != nil {
		log.WithContext(ctx).Fatalf("error creating models in Job Scheduler: %s", err.Error())
	}

	adapters, err := provider.NewAdapters(schedulerOptions.PollingProviders, schedulerOptions.ProviderOptions)
	if err != nil {
		log.WithContext(ctx).Fatalf("error creating provider adapters in Job Scheduler: %s", err.Error())
	}

	pollerService, err := services.NewPollerService(services.PollerServiceOptions{
		Models:           models,
		Adapters:         adapters,
		MonitorService:   serveOpts.MonitorService,
		Enabled:          schedulerOptions.ReconcileEnabled,
		Providers:        schedulerOptions.PollingProviders,
		BatchSize:        schedulerOptions.ReconcileBatchSize,
		AttemptOffsets:   schedulerOptions.ReconcileAttemptOffsets,
		AbandonedTimeout: time.Duration(schedulerOptions.AbandonedTimeoutMinutes) * time.Minute,
		HeartbeatSpacing: time.Duration(schedulerOptions.HeartbeatIntervalSeconds) * time.Second,
	})
	if err != nil {
		log.WithContext(ctx).Fatalf("error creating poller service in Job Scheduler: %s", err.Error())
	}

	senderService, err := services.NewSenderService(services.SenderServiceOptions{
		Models:           models,
		Client:           crm.NewClient(schedulerOptions.CrmClientOptions),
		MonitorService:   serveOpts.MonitorService,
		Enabled:          schedulerOptions.CrmEnabled,
		BatchSize:        schedulerOptions.ReconcileBatchSize,
		RetryBackoff:     schedulerOptions.CrmRetryBackoff,
		HeartbeatSpacing: time.Duration(schedulerOptions.HeartbeatIntervalSeconds) * time.Second,
	})
	if err != nil {
		log.WithContext(ctx).Fatalf("error creating sender service in Job Scheduler: %s", err.Error())
	}

	return []scheduler.SchedulerJobRegisterOption{
		scheduler.WithPSPPollerJobOption(jobs.PSPPollerJobOptions{
			JobIntervalSeconds: schedulerOptions.ReconcileIntervalSeconds,
			PollerService:      pollerService,
		}),
		scheduler.WithCRMSenderJobOption(jobs.CRMSenderJobOptions{
			JobIntervalSeconds: schedulerOptions.ReconcileIntervalSeconds,
			SenderService:      senderService,
		}),
	}, nil
}

func (c *ServeCommand) Command(serverService ServerServiceInterface, monitorService monitor.MonitorServiceInterface) *cobra.Command {
	serveOpts := serve.ServeOptions{}
	schedulerOptions := SchedulerOptions{}

	configOpts := cmdUtils.ConfigOptions{
		{
			Name:        "port",
			Usage:       "Port where the server will be listening on",
			OptType:     types.Int,
			ConfigKey:   &serveOpts.Port,
			FlagDefault: 8000,
			Required:    true,
		},
		{
			Name:           "cors-allowed-origins",
			Usage:          `Cors URLs that are allowed to access the endpoints, separated by ","`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionStringList,
			ConfigKey:      &serveOpts.CorsAllowedOrigins,
			FlagDefault:    "*",
			Required:       true,
		},
		{
			Name:      "health-auth-bearer",
			Usage:     "Static bearer token protecting the health metrics endpoint. When empty the endpoint always answers 401.",
			OptType:   types.String,
			ConfigKey: &serveOpts.HealthAuthBearer,
			Required:  false,
		},
		{
			Name:        "reconcile-enabled",
			Usage:       "Enable the PSP reconciliation loop",
			OptType:     types.Bool,
			ConfigKey:   &schedulerOptions.ReconcileEnabled,
			FlagDefault: true,
			Required:    false,
		},
		{
			Name:        "crm-enabled",
			Usage:       "Enable the CRM notification loop",
			OptType:     types.Bool,
			ConfigKey:   &schedulerOptions.CrmEnabled,
			FlagDefault: true,
			Required:    false,
		},
		{
			Name:        "reconcile-interval-seconds",
			Usage:       "How often each reconciliation job wakes up, in seconds",
			OptType:     types.Int,
			ConfigKey:   &schedulerOptions.ReconcileIntervalSeconds,
			FlagDefault: 15,
			Required:    true,
		},
		{
			Name:        "reconcile-batch-size",
			Usage:       "Maximum number of rows locked per reconciliation cycle",
			OptType:     types.Int,
			ConfigKey:   &schedulerOptions.ReconcileBatchSize,
			FlagDefault: 100,
			Required:    true,
		},
		{
			Name:           "reconcile-attempt-offsets",
			Usage:          `Seconds after payment creation when each reconciliation attempt becomes due, separated by ","`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionIntList,
			ConfigKey:      &schedulerOptions.ReconcileAttemptOffsets,
			FlagDefault:    "60,180,900,1800",
			Required:       true,
		},
		{
			Name:           "reconcile-polling-providers",
			Usage:          `Providers polled for payment status, separated by ","`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionProviderList,
			ConfigKey:      &schedulerOptions.PollingProviders,
			FlagDefault:    "webpay,stripe,paypal",
			Required:       true,
		},
		{
			Name:        "abandoned-timeout-minutes",
			Usage:       "Minutes after which an untouched PENDING payment is swept to ABANDONED. Zero disables the sweep.",
			OptType:     types.Int,
			ConfigKey:   &schedulerOptions.AbandonedTimeoutMinutes,
			FlagDefault: 60,
			Required:    true,
		},
		{
			Name:        "heartbeat-interval-seconds",
			Usage:       "Minimum spacing between heartbeat rows written by each loop",
			OptType:     types.Int,
			ConfigKey:   &schedulerOptions.HeartbeatIntervalSeconds,
			FlagDefault: 60,
			Required:    true,
		},
		{
			Name:           "crm-retry-backoff",
			Usage:          `Seconds to wait before retrying a failed CRM push, one entry per attempt, separated by ","; the last entry repeats forever`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionIntList,
			ConfigKey:      &schedulerOptions.CrmRetryBackoff,
			FlagDefault:    "60,300,1800",
			Required:       true,
		},
		{
			Name:           "crm-base-url",
			Usage:          "Base URL of the CRM service",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionURLString,
			ConfigKey:      &schedulerOptions.CrmClientOptions.BaseURL,
			Required:       false,
		},
		{
			Name:        "crm-pagar-path",
			Usage:       "Path of the CRM payment notification endpoint",
			OptType:     types.String,
			ConfigKey:   &schedulerOptions.CrmClientOptions.PagarPath,
			FlagDefault: "/pagar",
			Required:    true,
		},
		{
			Name:      "crm-auth-bearer",
			Usage:     "Bearer token sent on CRM requests. Optional.",
			OptType:   types.String,
			ConfigKey: &schedulerOptions.CrmClientOptions.BearerToken,
			Required:  false,
		},
		{
			Name:        "crm-timeout-seconds",
			Usage:       "HTTP timeout for CRM requests, in seconds",
			OptType:     types.Int,
			ConfigKey:   &schedulerOptions.CrmClientOptions.TimeoutSeconds,
			FlagDefault: 10,
			Required:    true,
		},
		{
			Name:        "crm-log-requests",
			Usage:       "Log CRM request/response pairs at debug level",
			OptType:     types.Bool,
			ConfigKey:   &schedulerOptions.CrmClientOptions.LogRequests,
			FlagDefault: true,
			Required:    false,
		},
		{
			Name:      "stripe-api-key",
			Usage:     "Stripe secret API key",
			OptType:   types.String,
			ConfigKey: &schedulerOptions.ProviderOptions.Stripe.APIKey,
			Required:  false,
		},
		{
			Name:           "stripe-api-base",
			Usage:          "Base URL of the Stripe API",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionURLString,
			ConfigKey:      &schedulerOptions.ProviderOptions.Stripe.APIBase,
			FlagDefault:    "https://api.stripe.com",
			Required:       true,
		},
		{
			Name:      "paypal-client-id",
			Usage:     "PayPal REST API client id",
			OptType:   types.String,
			ConfigKey: &schedulerOptions.ProviderOptions.PayPal.ClientID,
			Required:  false,
		},
		{
			Name:      "paypal-client-secret",
			Usage:     "PayPal REST API client secret",
			OptType:   types.String,
			ConfigKey: &schedulerOptions.ProviderOptions.PayPal.ClientSecret,
			Required:  false,
		},
		{
			Name:           "paypal-base-url",
			Usage:          "Base URL of the PayPal REST API",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionURLString,
			ConfigKey:      &schedulerOptions.ProviderOptions.PayPal.BaseURL,
			FlagDefault:    "https://api-m.sandbox.paypal.com",
			Required:       true,
		},
		{
			Name:        "webpay-status-url-template",
			Usage:       "URL template of the Webpay transaction status endpoint. {token} is replaced with the payment token.",
			OptType:     types.String,
			ConfigKey:   &schedulerOptions.ProviderOptions.Webpay.StatusURLTemplate,
			FlagDefault: "https://webpay3gint.transbank.cl/rswebpaytransaction/api/webpay/v1.2/transactions/{token}",
			Required:    true,
		},
		{
			Name:      "webpay-api-key-id",
			Usage:     "Webpay REST API key id header value",
			OptType:   types.String,
			ConfigKey: &schedulerOptions.ProviderOptions.Webpay.APIKeyID,
			Required:  false,
		},
		{
			Name:      "webpay-api-key-secret",
			Usage:     "Webpay REST API key secret header value",
			OptType:   types.String,
			ConfigKey: &schedulerOptions.ProviderOptions.Webpay.APIKeySecret,
			Required:  false,
		},
		{
			Name:      "webpay-commerce-code",
			Usage:     "Webpay commerce code header value",
			OptType:   types.String,
			ConfigKey: &schedulerOptions.ProviderOptions.Webpay.CommerceCode,
			Required:  false,
		},
	}

	// crash tracker options
	crashTrackerOptions := crashtracker.CrashTrackerOptions{}
	configOpts = append(configOpts, &cmdUtils.ConfigOption{
		Name:           "crash-tracker-type",
		Usage:          `Crash tracker type. Options: "SENTRY", "DRY_RUN"`,
		OptType:        types.String,
		CustomSetValue: cmdUtils.SetConfigOptionCrashTrackerType,
		ConfigKey:      &crashTrackerOptions.CrashTrackerType,
		FlagDefault:    string(crashtracker.CrashTrackerTypeDryRun),
		Required:       true,
	})

	// metrics server options
	metricsServeOpts := serve.MetricsServeOptions{}
	configOpts = append(configOpts,
		&cmdUtils.ConfigOption{
			Name:           "metrics-type",
			Usage:          `Metric monitor type. Options: "PROMETHEUS"`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionMetricType,
			ConfigKey:      &metricsServeOpts.MetricType,
			FlagDefault:    "PROMETHEUS",
			Required:       true,
		},
		&cmdUtils.ConfigOption{
			Name:        "metrics-port",
			Usage:       "Port where the metrics server will be listening on",
			OptType:     types.Int,
			ConfigKey:   &metricsServeOpts.Port,
			FlagDefault: 8002,
			Required:    true,
		})

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reconciliation loops and the admin API",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.Parent().PersistentPreRun(cmd.Parent(), args)

			// Validate & ingest input parameters
			configOpts.Require()
			err := configOpts.SetValues()
			if err != nil {
				log.Fatalf("Error setting values of config options: %s", err.Error())
			}

			// Initializing monitor service
			metricOptions := monitor.MetricOptions{
				MetricType:  metricsServeOpts.MetricType,
				Environment: globalOptions.Environment,
			}

			err = monitorService.Start(metricOptions)
			if err != nil {
				log.Fatalf("Error creating monitor service: %s", err.Error())
			}

			// Inject crash tracker options dependencies
			globalOptions.PopulateCrashTrackerOptions(&crashTrackerOptions)

			// Inject server dependencies
			serveOpts.AppName = globalOptions.AppName
			serveOpts.Environment = globalOptions.Environment
			serveOpts.GitCommit = globalOptions.GitCommit
			serveOpts.DatabaseDSN = globalOptions.DatabaseDSN
			serveOpts.Version = globalOptions.Version
			serveOpts.MonitorService = monitorService

			// Inject metrics server dependencies
			metricsServeOpts.MonitorService = monitorService
			metricsServeOpts.Environment = globalOptions.Environment
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()

			// Setup the Crash Tracker client
			crashTrackerClient, err := crashtracker.GetClient(ctx, crashTrackerOptions)
			if err != nil {
				log.WithContext(ctx).Fatalf("error creating crash tracker client: %s", err.Error())
			}
			serveOpts.CrashTrackerClient = crashTrackerClient

			// Starting Scheduler Service (background job)
			log.WithContext(ctx).Info("Starting Scheduler Service...")
			schedulerJobRegistrars, err := serverService.GetSchedulerJobRegistrars(ctx, serveOpts, schedulerOptions)
			if err != nil {
				log.WithContext(ctx).Fatalf("Error getting scheduler job registrars: %v", err)
			}
			go scheduler.StartScheduler(crashTrackerClient.Clone(), schedulerJobRegistrars...)

			// Starting Metrics Server (background job)
			log.WithContext(ctx).Info("Starting Metrics Server...")
			go serverService.StartMetricsServe(metricsServeOpts, &serve.HTTPServer{})

			// Starting Application Server
			log.WithContext(ctx).Info("Starting Admin Server...")
			serverService.StartServe(serveOpts, &serve.HTTPServer{})
		},
	}
	err := configOpts.Init(cmd)
	if err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}
