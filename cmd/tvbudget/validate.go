package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/tvbudget/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the tvbudget configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

// mapSections hold user-chosen keys (theme names)
var mapSections = []string{"ledger.limits.", "classifier.keywords."}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		_, _ = fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Defaults(), unknownKeys)
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return unknownKeysIn(v.AllKeys()), nil
}

func unknownKeysIn(keys []string) []string {
	validKeys := getValidKeys()
	unknown := []string{}
	for _, key := range keys {
		if validKeys[key] || inMapSection(key) {
			continue
		}
		unknown = append(unknown, key)
	}
	sort.Strings(unknown)
	return unknown
}

func inMapSection(key string) bool {
	for _, prefix := range mapSections {
		if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			return true
		}
	}
	return false
}

// getValidKeys returns every key that has a default
func getValidKeys() map[string]bool {
	v := viper.New()
	config.SetDefaults(v)

	keys := make(map[string]bool)
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	return keys
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	_, _ = cyan.Println("\n[tv]")
	dumpField("  host", cfg.TV.Host, defaultCfg.TV.Host, yellow, green)
	dumpField("  port", cfg.TV.Port, defaultCfg.TV.Port, yellow, green)
	dumpField("  status_path", cfg.TV.StatusPath, defaultCfg.TV.StatusPath, yellow, green)
	dumpField("  timeout", cfg.TV.Timeout, defaultCfg.TV.Timeout, yellow, green)
	dumpField("  poll_interval", cfg.TV.PollInterval, defaultCfg.TV.PollInterval, yellow, green)
	dumpField("  absence_ticks", cfg.TV.AbsenceTicks, defaultCfg.TV.AbsenceTicks, yellow, green)
	dumpField("  outage_timeout", cfg.TV.OutageTimeout, defaultCfg.TV.OutageTimeout, yellow, green)

	_, _ = cyan.Println("\n[youtube]")
	dumpField("  api_key", redactSecret(cfg.YouTube.APIKey), redactSecret(defaultCfg.YouTube.APIKey), yellow, green)
	dumpField("  base_url", cfg.YouTube.BaseURL, defaultCfg.YouTube.BaseURL, yellow, green)
	dumpField("  timeout", cfg.YouTube.Timeout, defaultCfg.YouTube.Timeout, yellow, green)

	_, _ = cyan.Println("\n[classifier]")
	dumpField("  backend", cfg.Classifier.Backend, defaultCfg.Classifier.Backend, yellow, green)
	dumpField("  api_key", redactSecret(cfg.Classifier.APIKey), redactSecret(defaultCfg.Classifier.APIKey), yellow, green)
	dumpField("  base_url", cfg.Classifier.BaseURL, defaultCfg.Classifier.BaseURL, yellow, green)
	dumpField("  model", cfg.Classifier.Model, defaultCfg.Classifier.Model, yellow, green)
	dumpField("  timeout", cfg.Classifier.Timeout, defaultCfg.Classifier.Timeout, yellow, green)
	dumpField("  retry_attempts", cfg.Classifier.RetryAttempts, defaultCfg.Classifier.RetryAttempts, yellow, green)
	for _, theme := range sortedKeys(cfg.Classifier.Keywords) {
		_, _ = yellow.Printf("  keywords.%s = %v\n", theme, cfg.Classifier.Keywords[theme])
	}

	_, _ = cyan.Println("\n[theme_cache]")
	dumpField("  ttl", cfg.ThemeCache.TTL, defaultCfg.ThemeCache.TTL, yellow, green)
	dumpField("  size", cfg.ThemeCache.Size, defaultCfg.ThemeCache.Size, yellow, green)

	_, _ = cyan.Println("\n[ledger]")
	for _, theme := range sortedKeys(cfg.Ledger.Limits) {
		_, _ = yellow.Printf("  limits.%s = %s\n", theme, cfg.Ledger.Limits[theme])
	}
	dumpField("  total_limit", cfg.Ledger.TotalLimit, defaultCfg.Ledger.TotalLimit, yellow, green)
	dumpField("  reset_cadence", cfg.Ledger.ResetCadence, defaultCfg.Ledger.ResetCadence, yellow, green)
	dumpField("  reset_time", cfg.Ledger.ResetTime, defaultCfg.Ledger.ResetTime, yellow, green)
	dumpField("  week_start", cfg.Ledger.WeekStart, defaultCfg.Ledger.WeekStart, yellow, green)
	dumpField("  timezone", cfg.Ledger.Timezone, defaultCfg.Ledger.Timezone, yellow, green)
	dumpField("  max_session_duration", cfg.Ledger.MaxSessionDuration, defaultCfg.Ledger.MaxSessionDuration, yellow, green)
	dumpField("  persist_retries", cfg.Ledger.PersistRetries, defaultCfg.Ledger.PersistRetries, yellow, green)

	_, _ = cyan.Println("\n[alert]")
	dumpField("  cooldown", cfg.Alert.Cooldown, defaultCfg.Alert.Cooldown, yellow, green)
	_, _ = cyan.Println("  [alert.speech]")
	dumpField("    backend", cfg.Alert.Speech.Backend, defaultCfg.Alert.Speech.Backend, yellow, green)
	dumpField("    command", cfg.Alert.Speech.Command, defaultCfg.Alert.Speech.Command, yellow, green)
	dumpField("    args", cfg.Alert.Speech.Args, defaultCfg.Alert.Speech.Args, yellow, green)
	dumpField("    timeout", cfg.Alert.Speech.Timeout, defaultCfg.Alert.Speech.Timeout, yellow, green)

	_, _ = cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	dumpField("  lock_path", cfg.Storage.LockPath, defaultCfg.Storage.LockPath, yellow, green)
	dumpField("  session_retention", cfg.Storage.SessionRetention, defaultCfg.Storage.SessionRetention, yellow, green)
	_, _ = cyan.Println("  [storage.sqlite]")
	dumpField("    path", cfg.Storage.SQLite.Path, defaultCfg.Storage.SQLite.Path, yellow, green)
	_, _ = cyan.Println("  [storage.redis]")
	dumpField("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host, yellow, green)
	dumpField("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port, yellow, green)
	dumpField("    password", redactSecret(cfg.Storage.Redis.Password), redactSecret(defaultCfg.Storage.Redis.Password), yellow, green)
	dumpField("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB, yellow, green)
	dumpField("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize, yellow, green)
	dumpField("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns, yellow, green)
	dumpField("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout, yellow, green)
	dumpField("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout, yellow, green)
	dumpField("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout, yellow, green)

	_, _ = cyan.Println("\n[analytics.kafka]")
	dumpField("  enabled", cfg.Analytics.Kafka.Enabled, defaultCfg.Analytics.Kafka.Enabled, yellow, green)
	dumpField("  brokers", cfg.Analytics.Kafka.Brokers, defaultCfg.Analytics.Kafka.Brokers, yellow, green)
	dumpField("  topic", cfg.Analytics.Kafka.Topic, defaultCfg.Analytics.Kafka.Topic, yellow, green)
	dumpField("  acks", cfg.Analytics.Kafka.Acks, defaultCfg.Analytics.Kafka.Acks, yellow, green)

	_, _ = cyan.Println("\n[metrics]")
	dumpField("  enabled", cfg.Metrics.Enabled, defaultCfg.Metrics.Enabled, yellow, green)
	dumpField("  bind_address", cfg.Metrics.BindAddress, defaultCfg.Metrics.BindAddress, yellow, green)
	dumpField("  port", cfg.Metrics.Port, defaultCfg.Metrics.Port, yellow, green)

	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			_, _ = red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	valueStr := fmt.Sprintf("%v", value)
	if reflect.DeepEqual(value, defaultValue) {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactSecret hides credentials if set
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "***REDACTED***"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
