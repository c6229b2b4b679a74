package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/plugin"
)

// FactorsCommandInput contains the input for the factors command.
type FactorsCommandInput struct {
	Username   string
	JSONOutput bool

	// Auth is an optional Authenticator for testing.
	// If nil, the OneLogin-backed one is built from the configuration.
	Auth plugin.Authenticator

	// Stdout is an optional writer for output (for testing).
	// If nil, os.Stdout will be used.
	Stdout *os.File
}

// factorListing is the JSON output format for the factors command.
type factorListing struct {
	ID          int    `json:"id"`
	DisplayName string `json:"display_name"`
	Default     bool   `json:"default"`
}

// ConfigureFactorsCommand sets up the factors command.
func ConfigureFactorsCommand(app *kingpin.Application, p *OneLoginPlugin) {
	input := FactorsCommandInput{}

	cmd := app.Command("factors", "List a user's enrolled MFA devices")

	cmd.Arg("username", "Gateway username to look up").
		Required().
		StringVar(&input.Username)

	cmd.Flag("json", "Output in JSON format").
		BoolVar(&input.JSONOutput)

	cmd.Action(func(c *kingpin.ParseContext) error {
		err := FactorsCommand(context.Background(), input, p)
		app.FatalIfError(err, "factors")
		return nil
	})
}

// FactorsCommand resolves the user and prints their enrolled factors the
// same way the factor-selection dialogue enumerates them.
func FactorsCommand(ctx context.Context, input FactorsCommandInput, p *OneLoginPlugin) error {
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

	factors, err := auth.ListEnrolledFactors(ctx, input.Username)
	if err != nil {
		printSuggestion(stdout, err)
		return err
	}

	if input.JSONOutput {
		listing := make([]factorListing, 0, len(factors))
		for _, factor := range factors {
			listing = append(listing, factorListing{
				ID:          factor.ID,
				DisplayName: factor.DisplayName,
				Default:     factor.Default,
			})
		}
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(listing)
	}

	if len(factors) == 0 {
		fmt.Fprintf(stdout, "No factors enrolled for %s\n", input.Username)
		return nil
	}
	for position, factor := range factors {
		marker := ""
		if factor.Default {
			marker = " (default)"
		}
		fmt.Fprintf(stdout, "%d) %s [id %d]%s\n", position+1, factor.DisplayName, factor.ID, marker)
	}
	return nil
}
