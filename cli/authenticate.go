package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/plugin"
)

// AuthenticateCommandInput contains the input for the authenticate command.
type AuthenticateCommandInput struct {
	Username string
	Protocol string

	// Auth is an optional Authenticator for testing.
	// If nil, the OneLogin-backed one is built from the configuration.
	Auth plugin.Authenticator

	// Settings are optional controller settings for testing.
	// If nil, they are derived from the configuration.
	Settings *plugin.Settings

	// Prompt is an optional prompt driver (for testing).
	// If nil, interactive survey prompts are used.
	Prompt PromptFunc

	// Stdout is an optional writer for output (for testing).
	// If nil, os.Stdout will be used.
	Stdout *os.File
}

// ConfigureAuthenticateCommand sets up the authenticate command.
func ConfigureAuthenticateCommand(app *kingpin.Application, p *OneLoginPlugin) {
	input := AuthenticateCommandInput{}

	cmd := app.Command("authenticate", "Run an interactive MFA authentication against OneLogin")

	cmd.Arg("username", "Gateway username to authenticate").
		Required().
		StringVar(&input.Username)

	cmd.Flag("protocol", "Connection protocol the session arrives over").
		Default("ssh").
		StringVar(&input.Protocol)

	cmd.Action(func(c *kingpin.ParseContext) error {
		err := AuthenticateCommand(context.Background(), input, p)
		app.FatalIfError(err, "authenticate")
		return nil
	})
}

// AuthenticateCommand drives the full authentication dialogue the way the
// session gateway would: one turn per inbound answer, looping until the
// session controller reaches an accept or deny.
func AuthenticateCommand(ctx context.Context, input AuthenticateCommandInput, p *OneLoginPlugin) error {
	stdout := resolveStdout(input.Stdout)

	auth := input.Auth
	if auth == nil {
		built, err := p.Authenticator()
		if err != nil {
			printSuggestion(stdout, err)
			return err
		}
		auth = built
	}

	settings := input.Settings
	if settings == nil {
		derived, err := p.Settings()
		if err != nil {
			printSuggestion(stdout, err)
			return err
		}
		settings = &derived
	}

	prompt := input.Prompt
	if prompt == nil {
		if !isATerminal() {
			return fmt.Errorf("authenticate needs a terminal for its prompts")
		}
		prompt = terminalPrompt
	}

	controller := plugin.New(auth, *settings, p.Logger())
	state := plugin.NewSessionState()
	answers := map[string]string{}

	// The gateway collects the first credential before the plugin ever
	// runs; empty means push, !select enters factor selection.
	credential, err := prompt("MFA password (empty for push, !select to pick a factor):", true)
	if err != nil {
		return err
	}
	answers[plugin.CredentialKey] = credential

	for {
		turn := &plugin.Turn{
			Username:      input.Username,
			Credential:    answers[plugin.CredentialKey],
			Protocol:      input.Protocol,
			KeyValuePairs: answers,
			State:         state,
		}
		decision := controller.HandleAuthenticationTurn(ctx, turn)

		switch decision.Action {
		case plugin.ActionAccept:
			fmt.Fprintf(stdout, "Accepted: %s\n", decision.Reason)
			return nil
		case plugin.ActionDeny:
			fmt.Fprintf(stdout, "Denied: %s\n", decision.Reason)
			return fmt.Errorf("authentication denied: %s", decision.Reason)
		case plugin.ActionNeedInfo:
			answer, err := prompt(decision.Prompt, decision.QuestionKey == plugin.CredentialKey)
			if err != nil {
				return err
			}
			answers[decision.QuestionKey] = answer
		default:
			return fmt.Errorf("unexpected decision action %q", decision.Action)
		}
	}
}

func resolveStdout(override *os.File) *os.File {
	if override != nil {
		return override
	}
	return os.Stdout
}
