package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ninjapay/payments-reconciler/internal/crashtracker"
	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/monitor"
)

func SetConfigOptionLogLevel(co *ConfigOption) error {
	logLevelStr := viper.GetString(co.Name)
	logLevel, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		return fmt.Errorf("couldn't parse log level: %w", err)
	}

	key, ok := co.ConfigKey.(*logrus.Level)
	if !ok {
		return fmt.Errorf("configKey has an invalid type %T", co.ConfigKey)
	}
	*key = logLevel

	if IsExplicitlySet(co) {
		logrus.Debugf("Setting log level to: %q", logLevel)
		logrus.SetLevel(*key)
	} else {
		logrus.Debugf("Using default log level: %q", logLevel)
	}
	return nil
}

func SetConfigOptionMetricType(co *ConfigOption) error {
	metricType := viper.GetString(co.Name)

	metricTypeParsed, err := monitor.ParseMetricType(metricType)
	if err != nil {
		return fmt.Errorf("couldn't parse metric type: %w", err)
	}

	*(co.ConfigKey.(*monitor.MetricType)) = metricTypeParsed
	return nil
}

func SetConfigOptionCrashTrackerType(co *ConfigOption) error {
	ctType := viper.GetString(co.Name)

	ctTypeParsed, err := crashtracker.ParseCrashTrackerType(ctType)
	if err != nil {
		return fmt.Errorf("couldn't parse crash tracker type: %w", err)
	}

	*(co.ConfigKey.(*crashtracker.CrashTrackerType)) = ctTypeParsed
	return nil
}

// SetConfigOptionURLString validates the incoming value as a URL before assigning it.
func SetConfigOptionURLString(co *ConfigOption) error {
	u := viper.GetString(co.Name)
	if u == "" {
		return nil
	}

	if !govalidator.IsURL(u) {
		return fmt.Errorf("invalid URL %q for flag --%s", u, co.Name)
	}

	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("configKey has an invalid type %T", co.ConfigKey)
	}
	*key = u
	return nil
}

// SetConfigOptionIntList parses a comma-separated list of integers, e.g. "60,180,900".
func SetConfigOptionIntList(co *ConfigOption) error {
	raw := viper.GetString(co.Name)

	key, ok := co.ConfigKey.(*[]int)
	if !ok {
		return fmt.Errorf("configKey has an invalid type %T", co.ConfigKey)
	}

	values := []int{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid integer %q in flag --%s: %w", part, co.Name, err)
		}
		values = append(values, v)
	}

	*key = values
	return nil
}

// SetConfigOptionStringList parses a comma-separated list of strings, trimming whitespace.
func SetConfigOptionStringList(co *ConfigOption) error {
	raw := viper.GetString(co.Name)

	key, ok := co.ConfigKey.(*[]string)
	if !ok {
		return fmt.Errorf("configKey has an invalid type %T", co.ConfigKey)
	}

	values := []string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		values = append(values, part)
	}

	*key = values
	return nil
}

// SetConfigOptionProviderList parses a comma-separated list of provider names,
// validating each against the known providers.
func SetConfigOptionProviderList(co *ConfigOption) error {
	raw := viper.GetString(co.Name)

	key, ok := co.ConfigKey.(*[]data.Provider)
	if !ok {
		return fmt.Errorf("configKey has an invalid type %T", co.ConfigKey)
	}

	providers := []data.Provider{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		provider, err := data.ParseProvider(part)
		if err != nil {
			return fmt.Errorf("invalid provider in flag --%s: %w", co.Name, err)
		}
		providers = append(providers, provider)
	}

	*key = providers
	return nil
}
