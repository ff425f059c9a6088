// Package cli builds the learnhub command tree on cobra: serve, worker,
// healthcheck, config and version.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/learnhub/learnhub/pkg/config"
	"github.com/learnhub/learnhub/pkg/observability/logger"
	"github.com/learnhub/learnhub/pkg/version"
)

const defaultHealthcheckTimeout = 5 * time.Second

// RunFunc runs a long-lived command until ctx is canceled.
type RunFunc func(ctx context.Context, cfg *config.Config, log logger.Logger) error

// ServiceCommandOptions defines the service specific parts of the command tree.
type ServiceCommandOptions struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	// RunServer starts the public API and management servers.
	RunServer RunFunc
	// RunWorker runs the job workers without the public API.
	RunWorker RunFunc
	// ValidateConfig runs after the built-in validation.
	ValidateConfig func(cfg *config.Config) error

	// Out receives command output; defaults to stdout.
	Out io.Writer
	// HTTPClient is used by healthcheck; defaults to a client with a 5s timeout.
	HTTPClient *http.Client
}

type rootFlags struct {
	configPath   string
	secretFile   string
	serviceName  string
	healthURL    string
	showSecrets  bool
	outputFormat string
}

// NewServiceCommand creates the root command with every subcommand attached.
func NewServiceCommand(opts ServiceCommandOptions) *cobra.Command {
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHealthcheckTimeout}
	}

	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(opts.Out)
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config-file", "c", opts.ConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&flags.secretFile, "secret-file", "", "path to secrets file (sets <PREFIX>_SECRETS_FILE)")
	rootCmd.PersistentFlags().StringVar(&flags.serviceName, "service-name", "", "service name override")

	load := func() (*config.Config, *config.ViperLoader, error) {
		return loadConfig(opts, flags)
	}
	loadWithLogger := func() (*config.Config, logger.Logger, error) {
		cfg, _, err := load()
		if err != nil {
			return nil, nil, err
		}
		log, err := NewLogger(cfg)
		if err != nil {
			return nil, nil, err
		}
		return cfg, log, nil
	}

	rootCmd.AddCommand(newVersionCommand(opts, flags))

	if opts.RunServer != nil {
		serveCmd := &cobra.Command{
			Use:   "serve",
			Short: "Start the public API and management servers",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := loadWithLogger()
				if err != nil {
					return err
				}
				return opts.RunServer(cmd.Context(), cfg, log)
			},
		}
		rootCmd.AddCommand(serveCmd)
		rootCmd.RunE = serveCmd.RunE
	}

	if opts.RunWorker != nil {
		rootCmd.AddCommand(&cobra.Command{
			Use:   "worker",
			Short: "Run the background job workers",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := loadWithLogger()
				if err != nil {
					return err
				}
				return opts.RunWorker(cmd.Context(), cfg, log)
			},
		})
	}

	healthCmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the readiness endpoint of a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(flags.healthURL)
			if target == "" {
				cfg, _, err := load()
				if err != nil {
					return err
				}
				if !cfg.Management.Enabled {
					return errors.New("management server is disabled; pass --url")
				}
				target = fmt.Sprintf("http://127.0.0.1:%d/readyz", cfg.Management.Port)
			}
			return probe(cmd.Context(), opts.HTTPClient, target, cmd.OutOrStdout())
		},
	}
	healthCmd.Flags().StringVar(&flags.healthURL, "url", "", "readiness URL (default: management port from config)")
	rootCmd.AddCommand(healthCmd)

	rootCmd.AddCommand(newConfigCommand(load, flags))
	return rootCmd
}

func newVersionCommand(opts ServiceCommandOptions, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := opts.Name
			if override := strings.TrimSpace(flags.serviceName); override != "" {
				name = override
			}
			info := version.Current(name)
			out := cmd.OutOrStdout()
			switch strings.ToLower(flags.outputFormat) {
			case "", "text":
				fmt.Fprintln(out, info.String())
				return nil
			case "yaml":
				return yaml.NewEncoder(out).Encode(info)
			default:
				return fmt.Errorf("unsupported output format %q (supported: text, yaml)", flags.outputFormat)
			}
		},
	}
	cmd.Flags().StringVarP(&flags.outputFormat, "output", "o", "text", "output format: text or yaml")
	return cmd
}

func newConfigCommand(load func() (*config.Config, *config.ViperLoader, error), flags *rootFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loader, err := load()
			if err != nil {
				return err
			}
			settings := loader.AllSettings()
			settings = setServiceNameSetting(settings, cfg.Service.Name)
			if !flags.showSecrets {
				settings = config.RedactSettings(settings, loader.SecretSettings())
			}
			formatted, err := formatSettings(settings)
			if err != nil {
				return err
			}
			if file := loader.ConfigFile(); file != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", file)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatted)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&flags.showSecrets, "show-secrets", false, "show secret values")
	configCmd.AddCommand(showCmd)
	return configCmd
}

func loadConfig(opts ServiceCommandOptions, flags *rootFlags) (*config.Config, *config.ViperLoader, error) {
	if err := applySecretFileFlag(opts.EnvPrefix, flags.secretFile); err != nil {
		return nil, nil, err
	}
	loader := config.NewViperLoader(flags.configPath, opts.EnvPrefix)
	cfg, err := loader.LoadWithSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Name = resolveServiceName(cfg.Service.Name, opts.Name, flags.serviceName)
	if opts.ValidateConfig != nil {
		if err := opts.ValidateConfig(cfg); err != nil {
			return nil, nil, fmt.Errorf("custom validation failed: %w", err)
		}
	}
	return cfg, loader, nil
}

// NewLogger creates the zap logger described by the observability section.
func NewLogger(cfg *config.Config) (*logger.ZapLogger, error) {
	level, err := logger.ParseLogLevel(cfg.Observability.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseLogFormat(cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{"service": cfg.Service.Name}
	if env := strings.TrimSpace(cfg.Service.Environment); env != "" {
		fields["environment"] = env
	}
	log, err := logger.NewZapLogger(logger.Config{Level: level, Format: format, Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log.Debug("effective configuration",
		"http_port", cfg.HTTP.Port,
		"management_port", cfg.Management.Port,
		"jobs_backend", cfg.Jobs.Backend,
		"embedded_worker", cfg.Jobs.EmbeddedWorker,
		"email_provider", cfg.Email.Provider,
		"tracing_enabled", cfg.Observability.TracingEnabled,
	)
	return log, nil
}

// probe succeeds only on a 200 answer; the body is copied to out either way.
func probe(ctx context.Context, client *http.Client, target string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build healthcheck request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck %s: %w", target, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("read healthcheck response: %w", err)
	}
	fmt.Fprintln(out)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck %s: status %d", target, resp.StatusCode)
	}
	return nil
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("secret file %s is not accessible: %w", secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secret file %s must not be a directory", secretFilePath)
	}
	return os.Setenv(strings.ToUpper(strings.TrimSpace(envPrefix))+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}

func formatSettings(settings map[string]interface{}) (string, error) {
	if settings == nil {
		return "{}\n", nil
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

func resolveServiceName(configured, defaultName, override string) string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	if v := strings.TrimSpace(configured); v != "" {
		return v
	}
	if v := strings.TrimSpace(defaultName); v != "" {
		return v
	}
	return "learnhub"
}

func setServiceNameSetting(settings map[string]interface{}, serviceName string) map[string]interface{} {
	if settings == nil {
		settings = map[string]interface{}{}
	}
	service, ok := settings["service"].(map[string]interface{})
	if !ok || service == nil {
		service = map[string]interface{}{}
	}
	service["name"] = serviceName
	settings["service"] = service
	return settings
}

// Execute runs the command and exits non-zero on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
