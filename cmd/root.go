package cmd

import (
	"go/types"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cmdUtils "github.com/ninjapay/payments-reconciler/cmd/utils"
	"github.com/ninjapay/payments-reconciler/internal/monitor"
)

// globalOptions is a variable that holds the global CLI options that can be
// applied to any command or subcommand.
var globalOptions cmdUtils.GlobalOptionsType

func rootCmd() *cobra.Command {
	configOpts := cmdUtils.ConfigOptions{
		{
			Name:        "app-name",
			Usage:       "Name of the application, used in heartbeats and runtime events.",
			OptType:     types.String,
			FlagDefault: "ninja-payments-reconciler",
			ConfigKey:   &globalOptions.AppName,
			Required:    true,
		},
		{
			Name:           "log-level",
			Usage:          `The log level used in this project. Options: "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", or "PANIC".`,
			OptType:        types.String,
			FlagDefault:    "INFO",
			ConfigKey:      &globalOptions.LogLevel,
			CustomSetValue: cmdUtils.SetConfigOptionLogLevel,
			Required:       true,
		},
		{
			Name:      "sentry-dsn",
			Usage:     "The DSN (client key) of the Sentry project. If not provided, Sentry will not be used.",
			OptType:   types.String,
			ConfigKey: &globalOptions.SentryDSN,
			Required:  false,
		},
		{
			Name:        "environment",
			Usage:       `The environment where the application is running. Example: "local", "staging", "production".`,
			OptType:     types.String,
			FlagDefault: "local",
			ConfigKey:   &globalOptions.Environment,
			Required:    true,
		},
		{
			Name:        DBConfigOptionFlagName,
			Usage:       "Postgres DB URL",
			OptType:     types.String,
			FlagDefault: "postgres://localhost:5432/payments?sslmode=disable",
			ConfigKey:   &globalOptions.DatabaseDSN,
			Required:    true,
		},
	}

	rootCmd := &cobra.Command{
		Use:     "payments-reconciler",
		Short:   "Payments Reconciler",
		Long:    "The payments reconciler polls payment service providers for the final status of open payments and pushes authorized payments to the CRM.",
		Version: globalOptions.Version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			configOpts.Require()
			err := configOpts.SetValues()
			if err != nil {
				log.Fatalf("Error setting values of config options: %s", err.Error())
			}
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			log.Info("Version: ", globalOptions.Version)
			log.Info("GitCommit: ", globalOptions.GitCommit)
		},
		Run: func(cmd *cobra.Command, args []string) {
			err := cmd.Help()
			if err != nil {
				log.Fatalf("Error calling help command: %s", err.Error())
			}
		},
	}

	err := configOpts.Init(rootCmd)
	if err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return rootCmd
}

// SetupCLI sets up the CLI and returns the root command with the subcommands
// attached.
func SetupCLI(version, gitCommit string) *cobra.Command {
	globalOptions.Version = version
	globalOptions.GitCommit = gitCommit
	rootCmd := rootCmd()

	// Add subcommands
	rootCmd.AddCommand((&ServeCommand{}).Command(&ServerService{}, &monitor.MonitorService{}))
	rootCmd.AddCommand((&DatabaseCommand{}).Command(&globalOptions))
	rootCmd.AddCommand((&VersionCommand{}).Command(&globalOptions))

	return rootCmd
}
