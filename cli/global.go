// Package cli wires the plugin into a console driver for operators:
// configuration loading, client construction and the interactive
// authentication loop used to test a OneLogin setup end to end.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/alecthomas/kingpin/v2"
	isatty "github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/authenticator"
	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/config"
	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/errors"
	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/logging"
	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/onelogin"
	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/plugin"
)

// OneLoginPlugin carries the global CLI state: the configuration file path,
// the verbosity override and lazily built collaborators.
type OneLoginPlugin struct {
	ConfigPath string
	Verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// ConfigureGlobals registers the global flags and returns the shared state.
func ConfigureGlobals(app *kingpin.Application) *OneLoginPlugin {
	p := &OneLoginPlugin{}

	app.Flag("config", "Path to the plugin configuration file").
		Default("onelogin.ini").
		StringVar(&p.ConfigPath)

	app.Flag("verbose", "Enable debug logging and full error detail").
		BoolVar(&p.Verbose)

	return p
}

// Config loads the configuration file once and caches it.
func (p *OneLoginPlugin) Config() (*config.Config, error) {
	if p.cfg == nil {
		cfg, err := config.Load(p.ConfigPath)
		if err != nil {
			return nil, err
		}
		if p.Verbose {
			cfg.Verbose = true
		}
		p.cfg = cfg
	}
	return p.cfg, nil
}

// Logger builds the plugin logger once and caches it.
func (p *OneLoginPlugin) Logger() *zap.Logger {
	if p.logger == nil {
		verbose := p.Verbose
		if p.cfg != nil {
			verbose = verbose || p.cfg.Verbose
		}
		p.logger = logging.New(verbose)
	}
	return p.logger
}

// Authenticator builds the OneLogin-backed Authenticator from the loaded
// configuration. Construction failures are fatal configuration errors.
func (p *OneLoginPlugin) Authenticator() (*authenticator.Authenticator, error) {
	cfg, err := p.Config()
	if err != nil {
		return nil, err
	}
	client, err := onelogin.New(cfg, p.Logger())
	if err != nil {
		return nil, err
	}
	return authenticator.New(client, authenticator.Options{
		UserAttribute: cfg.UserAttribute,
		PollInterval:  cfg.PushPollInterval,
		PollTimeout:   cfg.PushPollTimeout,
		Logger:        p.Logger(),
	})
}

// Settings derives the session controller settings from the configuration.
func (p *OneLoginPlugin) Settings() (plugin.Settings, error) {
	cfg, err := p.Config()
	if err != nil {
		return plugin.Settings{}, err
	}
	return plugin.Settings{
		FactorSelectionEnabled:   cfg.EnableFactorSelection,
		FactorSelectionProtocols: cfg.FactorSelectionProtocols,
		Verbose:                  cfg.Verbose,
	}, nil
}

func isATerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PromptFunc asks the operator one question. secret suppresses echo.
type PromptFunc func(message string, secret bool) (string, error)

// terminalPrompt is the default PromptFunc, backed by survey.
func terminalPrompt(message string, secret bool) (string, error) {
	var answer string
	var err error
	if secret {
		err = survey.AskOne(&survey.Password{Message: message}, &answer)
	} else {
		err = survey.AskOne(&survey.Input{Message: message}, &answer)
	}
	return answer, err
}

// printSuggestion surfaces the operator-facing hint carried by a
// PluginError, if any.
func printSuggestion(w io.Writer, err error) {
	if pe, ok := errors.IsPluginError(err); ok && pe.Suggestion() != "" {
		fmt.Fprintf(w, "Hint: %s\n", pe.Suggestion())
	}
}
