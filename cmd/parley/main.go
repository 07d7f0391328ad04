// Command parley is a terminal client for conversational exchanges: one-shot
// prompts or an interactive chat, with workspace tools, retries, budgets,
// and transcript persistence wired from configuration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parley/pkg/agent"
	"parley/pkg/budget"
	"parley/pkg/config"
	"parley/pkg/llm"
	"parley/pkg/llm/anthropic"
	"parley/pkg/logx"
	"parley/pkg/metrics"
	"parley/pkg/retry"
	"parley/pkg/session"
	"parley/pkg/tokens"
	"parley/pkg/tools"
)

// Version information - set by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cliOptions collects the parsed command line.
type cliOptions struct {
	configPath   string
	secretsPath  string
	model        string
	system       string
	workspace    string
	readonly     bool
	stream       bool
	resumeID     string
	deleteID     string
	listSessions bool
	saveKey      bool
	prompt       string
}

func main() {
	var (
		opts        cliOptions
		showVersion bool
	)
	flag.StringVar(&opts.configPath, "config", "parley.yaml", "Configuration file (missing file falls back to defaults)")
	flag.StringVar(&opts.secretsPath, "secrets", config.SecretsFileName, "Encrypted secrets file")
	flag.StringVar(&opts.model, "model", "", "Override the configured model")
	flag.StringVar(&opts.system, "system", "", "Override the configured system prompt")
	flag.StringVar(&opts.workspace, "workspace", "", "Directory to expose to the model as filesystem tools")
	flag.BoolVar(&opts.readonly, "readonly", false, "Expose the workspace read-only")
	flag.BoolVar(&opts.stream, "stream", false, "Use the streaming transport")
	flag.StringVar(&opts.resumeID, "resume", "", "Resume a saved session by ID")
	flag.StringVar(&opts.deleteID, "delete", "", "Delete a saved session by ID and exit")
	flag.BoolVar(&opts.listSessions, "sessions", false, "List saved sessions and exit")
	flag.BoolVar(&opts.saveKey, "save-key", false, "Encrypt an API key into the secrets file and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()
	opts.prompt = strings.TrimSpace(strings.Join(flag.Args(), " "))

	if showVersion {
		fmt.Printf("parley %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	os.Exit(run(opts))
}

// run contains the main application logic and returns an exit code.
// This allows defers to execute before os.Exit is called.
func run(opts cliOptions) int {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	applyFlagOverrides(cfg, opts)

	if opts.saveKey {
		if err := saveAPIKey(opts.secretsPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save key: %v\n", err)
			return 1
		}
		return 0
	}

	// Transcript store, when persistence is configured.
	var store *session.Store
	if cfg.Session.Path != "" {
		store, err = session.Open(cfg.Session.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open session store: %v\n", err)
			return 1
		}
		defer func() { _ = store.Close() }()
	}

	switch {
	case opts.listSessions:
		return listSessions(store)
	case opts.deleteID != "":
		return deleteSession(store, opts.deleteID)
	}

	apiKey, err := loadAPIKey(opts.secretsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load API key: %v\n", err)
		fmt.Fprintln(os.Stderr, "Set ANTHROPIC_API_KEY or store one with: parley -save-key")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var recorder metrics.Recorder = metrics.Nop()
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder()
		startMetricsServer(ctx, cfg.Metrics.Listen)
	}

	client, err := buildClient(cfg, apiKey, recorder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build client: %v\n", err)
		return 1
	}

	sess, agentOpts, err := buildAgentOptions(cfg, opts, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	ag := agent.New(client, agentOpts...)

	if opts.prompt != "" {
		return oneShot(ctx, ag, store, sess, cfg, opts.prompt)
	}
	return repl(ctx, ag, store, sess, cfg)
}

// applyFlagOverrides merges command line flags over the loaded config.
func applyFlagOverrides(cfg *config.Config, opts cliOptions) {
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.system != "" {
		cfg.System = opts.system
	}
	if opts.workspace != "" {
		cfg.Workspace = opts.workspace
	}
	if opts.stream {
		cfg.Streaming = true
	}
}

// buildClient assembles the middleware chain around the HTTP provider:
// retries outermost, metrics inside so every physical attempt is observed,
// per-attempt timeouts closest to the wire.
func buildClient(cfg *config.Config, apiKey string, recorder metrics.Recorder) (llm.Client, error) {
	providerOpts := []anthropic.Option{
		anthropic.WithModel(cfg.Model),
		anthropic.WithAPIKey(apiKey),
	}
	if cfg.BaseURL != "" {
		providerOpts = append(providerOpts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	provider, err := anthropic.New(providerOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	policy := retry.NewPolicy(retry.Config{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		InitialDelay:  time.Duration(cfg.Retry.InitialDelay),
		MaxDelay:      time.Duration(cfg.Retry.MaxDelay),
		BackoffFactor: cfg.Retry.BackoffFactor,
		Jitter:        cfg.Retry.Jitter,
	}, nil)

	return llm.Chain(provider,
		retry.Middleware(policy, recorder),
		metrics.Middleware(recorder),
		retry.TimeoutMiddleware(time.Duration(cfg.Timeout.Base), time.Duration(cfg.Timeout.PerToken)),
	), nil
}

// buildAgentOptions translates config and flags into agent options, loading
// the resumed session if one was requested.
func buildAgentOptions(cfg *config.Config, opts cliOptions, store *session.Store) (*session.Session, []agent.Option, error) {
	logger := logx.NewLogger("parley")

	agentOpts := []agent.Option{
		agent.WithSystem(cfg.System),
		agent.WithMaxTokens(cfg.MaxTokens),
		agent.WithMaxTurns(cfg.MaxTurns),
	}
	if cfg.Temperature != nil {
		agentOpts = append(agentOpts, agent.WithTemperature(*cfg.Temperature))
	}
	if cfg.Streaming {
		agentOpts = append(agentOpts, agent.WithStreaming())
	}
	if cfg.BudgetTokens > 0 {
		agentOpts = append(agentOpts, agent.WithBudget(budget.New(cfg.BudgetTokens)))
	}

	if cfg.Workspace != "" {
		var fsys tools.FS = tools.NewLocal(cfg.Workspace)
		if opts.readonly {
			fsys = tools.ReadOnly(fsys)
		}
		agentOpts = append(agentOpts, agent.WithTools(tools.FSTools(fsys)...))
		logger.Debug("workspace tools enabled over %s (readonly=%v)", cfg.Workspace, opts.readonly)
	}

	// Reject prompts that cannot fit the model's context window before they
	// hit the wire. The estimator falls back to a bytes-based count when no
	// tokenizer is available for the model.
	est, err := tokens.NewEstimator(cfg.Model)
	if err != nil {
		logger.Warn("tokenizer unavailable, using approximate counts: %v", err)
	}
	info, _ := config.GetModelInfo(cfg.Model)
	agentOpts = append(agentOpts, agent.WithPreflight(tokens.NewGuard(est, info.MaxContextTokens)))

	var sess *session.Session
	if opts.resumeID != "" {
		if store == nil {
			return nil, nil, errors.New("cannot resume: session persistence is disabled (set session.path in the config)")
		}
		sess, err = store.Get(opts.resumeID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading session %s: %w", opts.resumeID, err)
		}
		agentOpts = append(agentOpts, agent.WithConversation(agent.NewConversation(sess.Messages...)))
		fmt.Fprintf(os.Stderr, "Resumed session %s (%d messages)\n", sess.ID, len(sess.Messages))
	}

	return sess, agentOpts, nil
}

// startMetricsServer exposes /metrics on addr until ctx is cancelled.
func startMetricsServer(ctx context.Context, addr string) {
	logger := logx.NewLogger("metrics-server")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error: %v", err)
		}
	}()

	// Graceful shutdown - use a fresh context with timeout since the parent
	// is already cancelled by the time we shut down.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening on %s", addr)
}
