package cmd

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

	sqlitearchive "github.com/bnema/cuedesk/internal/adapters/audit/sqlite"
	chainstore "github.com/bnema/cuedesk/internal/adapters/credentials/chain"
	envstore "github.com/bnema/cuedesk/internal/adapters/credentials/env"
	filestore "github.com/bnema/cuedesk/internal/adapters/credentials/file"
	passstore "github.com/bnema/cuedesk/internal/adapters/credentials/pass"
	"github.com/bnema/cuedesk/internal/adapters/device/rest"
	"github.com/bnema/cuedesk/internal/adapters/intent/keyword"
	promadapter "github.com/bnema/cuedesk/internal/adapters/metrics/prometheus"
	"github.com/bnema/cuedesk/internal/adapters/reasoning/openai"
	tomlrepo "github.com/bnema/cuedesk/internal/adapters/repo/toml"
	redissessions "github.com/bnema/cuedesk/internal/adapters/sessions/redis"
	"github.com/bnema/cuedesk/internal/application"
	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const configDirName = ".cuedesk"

// app holds everything the commands share. The orchestrator is built lazily
// because only chat and repl need the device and reasoning adapters.
type app struct {
	config      *viper.Viper
	home        string
	log         zerolog.Logger
	credentials ports.CredentialStore
	settings    *tomlrepo.SettingsRepository
	registry    *prometheus.Registry
	now         func() time.Time

	orchestrator *application.Orchestrator
	closers      []io.Closer
}

func wireApp(stderr io.Writer) (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg, err := loadConfig(homeDir)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg, stderr)
	if err != nil {
		return nil, err
	}

	credentials, err := newCredentialStore(cfg, homeDir)
	if err != nil {
		return nil, fmt.Errorf("wire credential store chain: %w", err)
	}

	settingsRepo, err := tomlrepo.NewSettingsRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire settings repository: %w", err)
	}

	return &app{
		config:      cfg,
		home:        homeDir,
		log:         log,
		credentials: credentials,
		settings:    settingsRepo,
		registry:    prometheus.NewRegistry(),
		now:         time.Now,
	}, nil
}

func loadConfig(homeDir string) (*viper.Viper, error) {
	cfg := viper.New()
	cfg.SetConfigName("config")
	cfg.SetConfigType("toml")
	cfg.AddConfigPath(filepath.Join(homeDir, configDirName))
	cfg.SetEnvPrefix("CUEDESK")
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	defaults := domain.DefaultSettings()
	engine := application.DefaultConfig()
	cfg.SetDefault("mode", string(defaults.Mode))
	cfg.SetDefault("device.base_url", "http://127.0.0.1:8080")
	cfg.SetDefault("device.timeout", 10*time.Second)
	cfg.SetDefault("reasoning.endpoint", defaults.Reasoning.Endpoint)
	cfg.SetDefault("reasoning.model", defaults.Reasoning.Model)
	cfg.SetDefault("reasoning.max_tokens", defaults.Reasoning.MaxTokens)
	cfg.SetDefault("reasoning.temperature", defaults.Reasoning.Temperature)
	cfg.SetDefault("reasoning.timeout", defaults.Reasoning.Timeout)
	cfg.SetDefault("reasoning.key_ref", defaults.Reasoning.KeyRef)
	cfg.SetDefault("session.ttl", engine.SessionTTL)
	cfg.SetDefault("session.sweep_interval", engine.SweepInterval)
	cfg.SetDefault("session.history_limit", engine.HistoryLimit)
	cfg.SetDefault("confirmation.expiry", engine.ConfirmationExpiry)
	cfg.SetDefault("loop.max_depth", engine.MaxDepth)
	cfg.SetDefault("probe.interval", engine.ProbeInterval)
	cfg.SetDefault("audit.capacity", engine.AuditCapacity)
	cfg.SetDefault("audit.sqlite_path", filepath.Join(homeDir, configDirName, "audit.db"))
	cfg.SetDefault("sessions.redis_addr", "")
	cfg.SetDefault("sessions.redis_password", "")
	cfg.SetDefault("sessions.redis_db", 0)
	cfg.SetDefault("credentials.backends", "env,pass,file")
	cfg.SetDefault("log.level", "warn")
	cfg.SetDefault("log.format", "console")
	cfg.SetDefault("metrics.addr", "")
	// Read by the toml repositories; registered so env overrides apply.
	cfg.SetDefault("settings.path", "")
	cfg.SetDefault("policy.path", "")

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return cfg, nil
}

func newLogger(cfg *viper.Viper, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.GetString("log.level")))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}

	var writer io.Writer = out
	switch format := cfg.GetString("log.format"); format {
	case "json":
	case "console", "":
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Str("app", "cuedesk").Logger(), nil
}

func newCredentialStore(cfg *viper.Viper, homeDir string) (*chainstore.Store, error) {
	fileRoot := filepath.Join(homeDir, configDirName, "secrets")

	var backends []ports.CredentialStore
	for _, name := range strings.Split(cfg.GetString("credentials.backends"), ",") {
		switch strings.TrimSpace(name) {
		case "env":
			backends = append(backends, envstore.NewStore(nil))
		case "pass":
			backends = append(backends, passstore.NewStore())
		case "file":
			backends = append(backends, filestore.NewStore(fileRoot))
		case "":
		default:
			return nil, fmt.Errorf("unknown credential backend %q", name)
		}
	}
	if len(backends) == 0 {
		return chainstore.NewDefault(fileRoot, nil)
	}
	return chainstore.NewStore(backends...)
}

// engine builds the orchestrator on first use.
func (a *app) engine(ctx context.Context) (*application.Orchestrator, error) {
	if a.orchestrator != nil {
		return a.orchestrator, nil
	}

	settings, err := a.loadSettings(ctx)
	if err != nil {
		return nil, err
	}

	policyRepo, err := tomlrepo.NewPolicyRepository(a.config)
	if err != nil {
		return nil, fmt.Errorf("wire policy repository: %w", err)
	}
	policy, err := policyRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load risk policy: %w", err)
	}

	device, err := rest.New(
		a.config.GetString("device.base_url"),
		rest.WithHTTPClient(http.DefaultClient),
		rest.WithTimeout(a.config.GetDuration("device.timeout")),
	)
	if err != nil {
		return nil, fmt.Errorf("wire device client: %w", err)
	}

	opts := []application.Option{
		application.WithConfig(application.Config{
			SessionTTL:         a.config.GetDuration("session.ttl"),
			SweepInterval:      a.config.GetDuration("session.sweep_interval"),
			ConfirmationExpiry: a.config.GetDuration("confirmation.expiry"),
			MaxDepth:           a.config.GetInt("loop.max_depth"),
			HistoryLimit:       a.config.GetInt("session.history_limit"),
			ProbeInterval:      a.config.GetDuration("probe.interval"),
			AuditCapacity:      a.config.GetInt("audit.capacity"),
		}),
		application.WithSettings(settings),
		application.WithPolicy(policy),
		application.WithLogger(a.log),
		application.WithMetrics(promadapter.New(a.registry)),
		application.WithSettingsRepository(a.settings),
	}

	if path := a.config.GetString("audit.sqlite_path"); path != "" {
		archive, err := sqlitearchive.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open audit archive: %w", err)
		}
		a.closers = append(a.closers, archive)
		opts = append(opts, application.WithAuditSink(archive))
	}

	if addr := a.config.GetString("sessions.redis_addr"); addr != "" {
		snapshots, err := redissessions.NewSnapshotStore(ctx, redissessions.Config{
			Addr:     addr,
			Password: a.config.GetString("sessions.redis_password"),
			DB:       a.config.GetInt("sessions.redis_db"),
			TTL:      a.config.GetDuration("session.ttl"),
		})
		if err != nil {
			return nil, fmt.Errorf("connect session store: %w", err)
		}
		a.closers = append(a.closers, snapshots)
		opts = append(opts, application.WithSnapshotStore(snapshots))
	}

	a.orchestrator = application.New(application.Collaborators{
		Executor: device,
		Matcher:  keyword.New(),
		Backend:  openai.New(settings.Reasoning, a.credentials),
		Live:     device,
	}, opts...)
	return a.orchestrator, nil
}

// loadSettings prefers the persisted runtime settings and falls back to the
// config file and environment.
func (a *app) loadSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := a.settings.Load(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, domain.ErrSettingsNotFound) {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	mode, err := domain.ParseMode(a.config.GetString("mode"))
	if err != nil {
		return domain.Settings{}, err
	}
	return domain.Settings{
		Mode: mode,
		Reasoning: domain.ReasoningSettings{
			Endpoint:    strings.TrimRight(a.config.GetString("reasoning.endpoint"), "/"),
			Model:       a.config.GetString("reasoning.model"),
			MaxTokens:   a.config.GetInt("reasoning.max_tokens"),
			Temperature: a.config.GetFloat64("reasoning.temperature"),
			Timeout:     a.config.GetDuration("reasoning.timeout"),
			KeyRef:      a.config.GetString("reasoning.key_ref"),
		},
	}, nil
}

func (a *app) Close() error {
	var errs []error
	if a.orchestrator != nil {
		a.orchestrator.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
