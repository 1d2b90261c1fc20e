package cmd

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ninjapay/payments-reconciler/internal/crashtracker"
	"github.com/ninjapay/payments-reconciler/internal/crm"
	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/monitor"
	"github.com/ninjapay/payments-reconciler/internal/provider"
	"github.com/ninjapay/payments-reconciler/internal/scheduler"
	"github.com/ninjapay/payments-reconciler/internal/serve"
)

type mockServer struct {
	wg sync.WaitGroup
	mock.Mock
}

// Making sure that mockServer implements ServerServiceInterface
var _ ServerServiceInterface = (*mockServer)(nil)

func (m *mockServer) StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface) {
	m.Called(opts, httpServer)
	m.wg.Wait()
}

func (m *mockServer) StartMetricsServe(opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface) {
	m.Called(opts, httpServer)
	m.wg.Done()
}

func (m *mockServer) GetSchedulerJobRegistrars(ctx context.Context, serveOpts serve.ServeOptions, schedulerOptions SchedulerOptions) ([]scheduler.SchedulerJobRegisterOption, error) {
	args := m.Called(ctx, serveOpts, schedulerOptions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]scheduler.SchedulerJobRegisterOption), args.Error(1)
}

func Test_serve_helpMessage(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	rootCmd := SetupCLI("x.y.z", "1234567890abcdef")
	serveCmdFound := false

	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "serve" {
			serveCmdFound = true
		}
	}
	require.True(t, serveCmdFound, "serve command not found")
	rootCmd.SetArgs([]string{"serve", "--help"})
	var out bytes.Buffer
	rootCmd.SetOut(&out)

	err := rootCmd.Execute()
	require.NoError(t, err)

	assert.Contains(t, out.String(), "payments-reconciler serve [flags]", "should have printed help message for serve command")
}

func Test_serve_wiresDependenciesFromDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("ENVIRONMENT", "test")

	mMonitorService := monitor.MockMonitorService{}
	mMonitorService.
		On("Start", monitor.MetricOptions{MetricType: monitor.MetricTypePrometheus, Environment: "test"}).
		Return(nil).
		Once()

	crashTrackerClient, err := crashtracker.GetClient(context.Background(), crashtracker.CrashTrackerOptions{
		CrashTrackerType: crashtracker.CrashTrackerTypeDryRun,
		Environment:      "test",
		GitCommit:        "1234567890abcdef",
	})
	require.NoError(t, err)

	wantServeOptions := serve.ServeOptions{
		AppName:            "ninja-payments-reconciler",
		Environment:        "test",
		GitCommit:          "1234567890abcdef",
		Version:            "x.y.z",
		Port:               8000,
		DatabaseDSN:        "postgres://localhost:5432/payments?sslmode=disable",
		CorsAllowedOrigins: []string{"*"},
		MonitorService:     &mMonitorService,
		CrashTrackerClient: crashTrackerClient,
	}

	wantMetricsServeOptions := serve.MetricsServeOptions{
		Port:           8002,
		Environment:    "test",
		MonitorService: &mMonitorService,
		MetricType:     monitor.MetricTypePrometheus,
	}

	wantSchedulerOptions := SchedulerOptions{
		ReconcileEnabled:         true,
		CrmEnabled:               true,
		ReconcileIntervalSeconds: 15,
		ReconcileBatchSize:       100,
		ReconcileAttemptOffsets:  []int{60, 180, 900, 1800},
		PollingProviders:         []data.Provider{data.WebpayProvider, data.StripeProvider, data.PayPalProvider},
		AbandonedTimeoutMinutes:  60,
		HeartbeatIntervalSeconds: 60,
		CrmRetryBackoff:          []int{60, 300, 1800},
		ProviderOptions: provider.Options{
			Webpay: provider.WebpayOptions{
				StatusURLTemplate: "https://webpay3gint.transbank.cl/rswebpaytransaction/api/webpay/v1.2/transactions/{token}",
			},
			Stripe: provider.StripeOptions{APIBase: "https://api.stripe.com"},
			PayPal: provider.PayPalOptions{BaseURL: "https://api-m.sandbox.paypal.com"},
		},
		CrmClientOptions: crm.ClientOptions{
			PagarPath:      "/pagar",
			TimeoutSeconds: 10,
			LogRequests:    true,
		},
	}

	mServer := mockServer{}
	mServer.wg.Add(1)
	mServer.
		On("GetSchedulerJobRegistrars", mock.Anything, wantServeOptions, wantSchedulerOptions).
		Return([]scheduler.SchedulerJobRegisterOption{}, nil).
		Once()
	mServer.
		On("StartMetricsServe", wantMetricsServeOptions, mock.AnythingOfType("*serve.HTTPServer")).
		Once()
	mServer.
		On("StartServe", wantServeOptions, mock.AnythingOfType("*serve.HTTPServer")).
		Once()

	// SetupCLI and replace the serve command with one containing a mocked server
	rootCmd := SetupCLI("x.y.z", "1234567890abcdef")
	originalCommands := rootCmd.Commands()
	rootCmd.ResetCommands()
	serveCmdFound := false
	for _, command := range originalCommands {
		if command.Use == "serve" {
			serveCmdFound = true
			rootCmd.AddCommand((&ServeCommand{}).Command(&mServer, &mMonitorService))
		} else {
			rootCmd.AddCommand(command)
		}
	}
	require.True(t, serveCmdFound, "serve command not found")
	rootCmd.SetArgs([]string{"serve"})

	err = rootCmd.Execute()
	require.NoError(t, err)

	mServer.AssertExpectations(t)
	mMonitorService.AssertExpectations(t)
}
