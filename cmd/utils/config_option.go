package utils

import (
	"fmt"
	"go/types"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ConfigOption is a CLI flag backed by viper, so every option can also be set
// through the environment. The environment variable name is the flag name
// upper-snake-cased: "crm-base-url" reads CRM_BASE_URL.
type ConfigOption struct {
	// Name of the flag, in kebab-case.
	Name string
	// Usage description shown in --help.
	Usage string
	// OptType is the basic kind of the flag value (types.String, types.Int, types.Bool).
	OptType types.BasicKind
	// CustomSetValue, when set, replaces the default assignment to ConfigKey.
	CustomSetValue func(co *ConfigOption) error
	// ConfigKey is a pointer to where the parsed value is stored.
	ConfigKey any
	// FlagDefault is the default value used when neither flag nor env is set.
	FlagDefault any
	// Required makes Require() abort when the resolved value is empty.
	Required bool

	flag *pflag.Flag
}

type ConfigOptions []*ConfigOption

// Init declares every option as a persistent flag on cmd and binds it to viper.
func (cos ConfigOptions) Init(cmd *cobra.Command) error {
	for _, co := range cos {
		if err := co.init(cmd); err != nil {
			return fmt.Errorf("initializing config option %q: %w", co.Name, err)
		}
	}
	return nil
}

// Require aborts the process when a required option resolved to an empty value.
func (cos ConfigOptions) Require() {
	for _, co := range cos {
		co.require()
	}
}

// SetValues copies every resolved value into its ConfigKey destination.
func (cos ConfigOptions) SetValues() error {
	for _, co := range cos {
		if err := co.setValue(); err != nil {
			return fmt.Errorf("setting value of config option %q: %w", co.Name, err)
		}
	}
	return nil
}

// EnvVarName returns the environment variable bound to this option.
func (co *ConfigOption) EnvVarName() string {
	return strings.ToUpper(strings.ReplaceAll(co.Name, "-", "_"))
}

// IsExplicitlySet reports whether the value came from the flag or the
// environment rather than from the default.
func IsExplicitlySet(co *ConfigOption) bool {
	if co.flag != nil && co.flag.Changed {
		return true
	}
	_, ok := os.LookupEnv(co.EnvVarName())
	return ok
}

func (co *ConfigOption) init(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()

	switch co.OptType {
	case types.String:
		def, _ := co.FlagDefault.(string)
		flags.String(co.Name, def, co.Usage)
	case types.Int:
		def, _ := co.FlagDefault.(int)
		flags.Int(co.Name, def, co.Usage)
	case types.Bool:
		def, _ := co.FlagDefault.(bool)
		flags.Bool(co.Name, def, co.Usage)
	default:
		return fmt.Errorf("unsupported option type %v", co.OptType)
	}

	co.flag = flags.Lookup(co.Name)

	if err := viper.BindPFlag(co.Name, co.flag); err != nil {
		return fmt.Errorf("binding flag: %w", err)
	}
	if err := viper.BindEnv(co.Name, co.EnvVarName()); err != nil {
		return fmt.Errorf("binding env var %s: %w", co.EnvVarName(), err)
	}

	return nil
}

func (co *ConfigOption) require() {
	if co.Required && viper.GetString(co.Name) == "" {
		log.Fatalf("Missing config value: set the --%s flag or the %s environment variable", co.Name, co.EnvVarName())
	}
}

func (co *ConfigOption) setValue() error {
	if co.CustomSetValue != nil {
		return co.CustomSetValue(co)
	}
	if co.ConfigKey == nil {
		return nil
	}

	switch key := co.ConfigKey.(type) {
	case *string:
		*key = viper.GetString(co.Name)
	case *int:
		*key = viper.GetInt(co.Name)
	case *bool:
		*key = viper.GetBool(co.Name)
	default:
		return fmt.Errorf("configKey has an unsupported type %T", co.ConfigKey)
	}
	return nil
}
