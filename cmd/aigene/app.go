package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tsukumogami/aigene/internal/config"
	"github.com/tsukumogami/aigene/internal/deps"
	"github.com/tsukumogami/aigene/internal/errmsg"
	"github.com/tsukumogami/aigene/internal/httputil"
	"github.com/tsukumogami/aigene/internal/installer"
	"github.com/tsukumogami/aigene/internal/ledger"
	"github.com/tsukumogami/aigene/internal/llm"
	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/proc"
	"github.com/tsukumogami/aigene/internal/progress"
	"github.com/tsukumogami/aigene/internal/pyenv"
	"github.com/tsukumogami/aigene/internal/secrets"
	"github.com/tsukumogami/aigene/internal/selfupdate"
	"github.com/tsukumogami/aigene/internal/userconfig"
	"github.com/tsukumogami/aigene/internal/workspace"
)

// app wires the packages together for one invocation.
type app struct {
	cfg    *config.Config
	user   *userconfig.Config
	logger log.Logger
	runner proc.Runner
	env    *pyenv.Environment
	ws     *workspace.Workspace
	out    io.Writer
	tty    bool
}

// loadApp resolves the home directory, loads .env and config.toml, and
// builds the shared components. Nothing touches the network here.
func loadApp() (*app, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	extra := []string{}
	if wd, err := os.Getwd(); err == nil {
		extra = append(extra, wd)
	}
	if err := cfg.LoadDotEnv(extra...); err != nil {
		log.Default().Warn("ignoring .env", "error", err)
	}

	user, err := userconfig.LoadFrom(cfg.ConfigFile)
	if err != nil {
		return nil, errmsg.Wrap(errmsg.FatalConfig, err)
	}

	logger := log.Default()
	runner := &proc.ExecRunner{}
	out := io.Writer(os.Stdout)
	python := user.Python
	if python == "" {
		python = userconfig.DefaultPython()
	}

	return &app{
		cfg:    cfg,
		user:   user,
		logger: logger,
		runner: runner,
		env:    pyenv.New(cfg.VenvDir, python, runner, logger, out),
		ws:     workspace.New(cfg.CodeDir, logger),
		out:    out,
		tty:    progress.ShouldShowProgress(),
	}, nil
}

func (a *app) probe() installer.Probe {
	return installer.NewPipProbe(a.env, a.runner)
}

func (a *app) installer() *installer.Installer {
	return installer.New(a.env, a.runner, installer.Options{
		Mirrors: a.user.Mirrors,
		Timeout: config.GetInstallTimeout(),
		Probe:   a.probe(),
		Out:     a.out,
		TTY:     a.tty,
		Logger:  a.logger,
	})
}

func (a *app) ledger() *ledger.Ledger {
	return ledger.New(a.cfg.LedgerFile, a.logger)
}

func (a *app) workflow() *deps.Workflow {
	return deps.New(a.installer(), a.ledger(), deps.Options{
		Probe:  a.probe(),
		Out:    a.out,
		Logger: a.logger,
	})
}

// runScript runs a saved script with the venv interpreter, attached to
// this terminal.
func (a *app) runScript(ctx context.Context, path string) (int, error) {
	if _, err := a.env.Ensure(ctx); err != nil {
		return -1, err
	}
	cmd := a.env.Command(path)
	cmd.Dir = a.ws.Dir()
	return workspace.Run(ctx, cmd, workspace.StdStreams())
}

// llmConfig builds the chat configuration from config.toml and the
// provider's API key.
func (a *app) llmConfig() (llm.Config, *errmsg.ErrorContext, error) {
	cfg := llm.Config{
		Provider:       a.user.Provider,
		Model:          a.user.Model,
		ReasoningModel: a.user.ReasoningModel,
		HTTPClient:     httputil.NewClient(httputil.ClientOptions{}),
	}
	ectx := &errmsg.ErrorContext{Provider: cfg.Provider}

	keyName, ok := secrets.ProviderKey(cfg.Provider)
	if !ok {
		return cfg, ectx, fmt.Errorf("%w: %q (choose one of %v)", llm.ErrUnknownProvider, cfg.Provider, llm.Providers())
	}
	for _, k := range secrets.KnownKeys() {
		if k.Name == keyName && len(k.EnvVars) > 0 {
			ectx.EnvVar = k.EnvVars[0]
		}
	}
	key, err := secrets.Lookup(a.user, keyName)
	if err != nil {
		return cfg, ectx, err
	}
	cfg.APIKey = key
	return cfg, ectx, nil
}

func (a *app) checkClient() *http.Client {
	return httputil.NewClient(httputil.ClientOptions{Timeout: config.GetCheckTimeout()})
}

func (a *app) downloadClient() *http.Client {
	return httputil.NewClient(httputil.ClientOptions{})
}

// updateSource returns the configured release source.
func (a *app) updateSource(client *http.Client) (selfupdate.Source, error) {
	switch a.user.UpdateSource {
	case "", "http":
		return selfupdate.NewHTTPSource(config.GetUpdateURL(a.user.UpdateURL), client), nil
	case "github":
		token, _ := secrets.Lookup(a.user, "github_token")
		return selfupdate.NewGitHubSource(selfupdate.GitHubOptions{
			Repo:       a.user.UpdateRepo,
			Branch:     a.user.UpdateBranch,
			Token:      token,
			HTTPClient: client,
		})
	}
	return nil, errmsg.Wrap(errmsg.FatalConfig,
		fmt.Errorf("unknown update_source %q: expected http or github", a.user.UpdateSource))
}

func (a *app) marker() *selfupdate.VersionMarker {
	return selfupdate.NewVersionMarker(a.cfg.VersionFile)
}

func (a *app) checker() (*selfupdate.Checker, error) {
	src, err := a.updateSource(a.checkClient())
	if err != nil {
		return nil, err
	}
	return selfupdate.NewChecker(a.marker(), src, config.GetCheckTimeout(), a.logger), nil
}

func (a *app) finalizer() *selfupdate.Finalizer {
	return selfupdate.NewFinalizer(selfupdate.FinalizerOptions{
		RecordPath: a.cfg.UpdateRecordFile,
		InstallDir: a.cfg.HomeDir,
		StagingDir: a.cfg.StagingDir,
		Out:        a.out,
		Logger:     a.logger,
		ErrorLog:   a.cfg.UpdateLogFile,
	})
}

// finalize completes an update left pending by the previous run. It
// never fails the launch.
func (a *app) finalize(ctx context.Context) selfupdate.Outcome {
	outcome, err := a.finalizer().Finalize(ctx)
	if err != nil {
		a.logger.Error("could not finish pending update", "error", err)
	}
	return outcome
}

// applyUpdate stages the release in info and writes the version marker
// once every file is in place or recorded for the next launch.
func (a *app) applyUpdate(ctx context.Context, info *selfupdate.UpdateInfo) (*selfupdate.Result, error) {
	if info.Release == nil || info.Release.DownloadURL == "" {
		return nil, fmt.Errorf("the update source did not provide a download")
	}

	var verifier *selfupdate.Verifier
	if a.user.UpdatePublicKey != "" {
		v, err := selfupdate.LoadVerifier(a.user.UpdatePublicKey, a.user.UpdateKeyFingerprint)
		if err != nil {
			return nil, errmsg.Wrap(errmsg.FatalConfig, err)
		}
		verifier = v
	}

	ctx, cancel := context.WithTimeout(ctx, config.GetDownloadTimeout())
	defer cancel()

	stager, err := selfupdate.NewStager(selfupdate.StagerOptions{
		DownloadURL:  info.Release.DownloadURL,
		SignatureURL: info.Release.SignatureURL,
		Verifier:     verifier,
		InstallDir:   a.cfg.HomeDir,
		StagingDir:   a.cfg.StagingDir,
		RecordPath:   a.cfg.UpdateRecordFile,
		Client:       a.downloadClient(),
		Out:          a.out,
		TTY:          a.tty,
		Logger:       a.logger,
		ErrorLog:     a.cfg.UpdateLogFile,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := stager.Stage(ctx)
	if err != nil {
		return res, err
	}
	if err := res.Err(); err != nil {
		return res, err
	}
	if err := a.marker().Write(info.Latest); err != nil {
		return res, err
	}
	a.logger.Info("update staged", "version", info.Latest, "copied", len(res.Copied),
		"deferred", len(res.Skipped), "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}
