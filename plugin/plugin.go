package plugin

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/authenticator"
	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/errors"
)

// Authenticator is the verification capability the session controller
// drives. *authenticator.Authenticator satisfies it.
type Authenticator interface {
	ListEnrolledFactors(ctx context.Context, username string) ([]authenticator.EnrolledFactor, error)
	VerifyOTP(ctx context.Context, username, code string, factorID int) (bool, error)
	VerifyPush(ctx context.Context, username string, factorID int) (bool, error)
}

// Settings is the externally supplied behavior configuration for the
// session controller.
type Settings struct {
	// FactorSelectionEnabled gates the !select command.
	FactorSelectionEnabled bool

	// FactorSelectionProtocols is the protocol allowlist for the selection
	// dialogue. Empty means DefaultFactorSelectionProtocols.
	FactorSelectionProtocols []string

	// Verbose adds full diagnostic detail (error context and stack traces)
	// when a provider failure is logged.
	Verbose bool
}

// Plugin is the session controller. One instance serves many sessions
// concurrently; all per-session state travels in the Turn.
type Plugin struct {
	auth     Authenticator
	settings Settings
	logger   *zap.Logger
}

// New creates a session controller over the given Authenticator.
// A nil logger is replaced with a nop logger.
func New(auth Authenticator, settings Settings, logger *zap.Logger) *Plugin {
	if len(settings.FactorSelectionProtocols) == 0 {
		settings.FactorSelectionProtocols = DefaultFactorSelectionProtocols
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plugin{auth: auth, settings: settings, logger: logger}
}

// HandleAuthenticationTurn processes one inbound turn and returns the
// session decision. Provider failures of any kind, push timeout included,
// are logged and converted to a generic deny here; internal error text is
// never exposed to the remote party.
func (p *Plugin) HandleAuthenticationTurn(ctx context.Context, turn *Turn) Decision {
	decision, err := p.handleTurn(ctx, turn)
	if err != nil {
		p.logAuthenticationError(err)
		return Deny(DenyReasonError)
	}
	return decision
}

func (p *Plugin) handleTurn(ctx context.Context, turn *Turn) (Decision, error) {
	if turn.State == nil {
		turn.State = NewSessionState()
	}
	if turn.State.FactorSelectionInProgress {
		return p.finishFactorSelection(turn), nil
	}
	if turn.Credential != "" {
		if turn.Credential == SelectFactorCommand {
			return p.runFactorSelectionCommand(ctx, turn)
		}
		return p.verifyOTP(ctx, turn)
	}
	return p.verifyPush(ctx, turn)
}

// finishFactorSelection consumes the menu answer. The in-progress flag
// clears whether or not the answer is usable.
func (p *Plugin) finishFactorSelection(turn *Turn) Decision {
	p.logger.Info("finishing factor selection", zap.String("username", turn.Username))
	turn.State.FactorSelectionInProgress = false

	selection := turn.KeyValuePairs[SelectionAnswerKey]
	index, err := strconv.Atoi(strings.TrimSpace(selection))
	if err != nil || index < 1 || index > len(turn.State.EnrolledFactors) {
		p.logger.Info("invalid factor selection", zap.String("selection", selection))
		return Deny(DenyReasonInvalidSelection)
	}
	turn.State.SelectedFactorID = turn.State.EnrolledFactors[index-1].ID

	// The credential buffered before the selection round trip belongs to
	// the previous prompt; drop it and ask again.
	delete(turn.KeyValuePairs, CredentialKey)

	p.logger.Debug("factor selected", zap.Int("factor_id", turn.State.SelectedFactorID))
	return NeedInfo(CredentialPrompt, CredentialKey)
}

// runFactorSelectionCommand handles the !select command: config and
// protocol gates first, then the enrolled-factor menu.
func (p *Plugin) runFactorSelectionCommand(ctx context.Context, turn *Turn) (Decision, error) {
	p.logger.Info("running factor selection", zap.String("username", turn.Username))
	if !p.settings.FactorSelectionEnabled {
		p.logger.Info("factor selection requested but not enabled")
		return Deny(DenyReasonSelectionDisabled), nil
	}
	if !p.factorSelectionSupported(turn.Protocol) {
		p.logger.Info("factor selection not supported", zap.String("protocol", turn.Protocol))
		return Deny(DenyReasonProtocolNotSupported), nil
	}

	factors, err := p.auth.ListEnrolledFactors(ctx, turn.Username)
	if err != nil {
		return Decision{}, err
	}
	if len(factors) == 0 {
		p.logger.Info("no factors are available to select from")
		return Deny(DenyReasonNoFactors), nil
	}

	choices := make([]FactorChoice, 0, len(factors))
	for _, factor := range factors {
		choices = append(choices, FactorChoice{ID: factor.ID, DisplayName: factor.DisplayName})
	}
	turn.State.EnrolledFactors = choices
	turn.State.FactorSelectionInProgress = true

	p.logger.Debug("factor selection initialized", zap.Int("factors", len(choices)))
	return NeedInfo(selectionPrompt(choices), SelectionAnswerKey), nil
}

func (p *Plugin) verifyOTP(ctx context.Context, turn *Turn) (Decision, error) {
	ok, err := p.auth.VerifyOTP(ctx, turn.Username, turn.Credential, turn.State.SelectedFactorID)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		p.logger.Info("OTP authentication failed", zap.String("username", turn.Username))
		return Deny(DenyReasonOTPFailed), nil
	}
	p.logger.Info("OTP authentication successful", zap.String("username", turn.Username))
	return Accept(AcceptReasonOTP), nil
}

func (p *Plugin) verifyPush(ctx context.Context, turn *Turn) (Decision, error) {
	p.logger.Info("running push authentication",
		zap.String("username", turn.Username),
		zap.Int("factor_id", turn.State.SelectedFactorID))
	ok, err := p.auth.VerifyPush(ctx, turn.Username, turn.State.SelectedFactorID)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		p.logger.Info("push verification rejected by user", zap.String("username", turn.Username))
		return Deny(DenyReasonPushFailed), nil
	}
	p.logger.Info("push verification accepted by user", zap.String("username", turn.Username))
	return Accept(AcceptReasonPush), nil
}

func (p *Plugin) factorSelectionSupported(protocol string) bool {
	for _, supported := range p.settings.FactorSelectionProtocols {
		if protocol == supported {
			return true
		}
	}
	return false
}

// logAuthenticationError records a provider failure. Verbose mode adds the
// error code, the structured context and a stack trace.
func (p *Plugin) logAuthenticationError(err error) {
	fields := []zap.Field{zap.Error(err)}
	if p.settings.Verbose {
		if pe, ok := errors.IsPluginError(err); ok {
			fields = append(fields,
				zap.String("error_code", pe.Code()),
				zap.Any("error_context", pe.Context()))
		}
		fields = append(fields, zap.Stack("stacktrace"))
	}
	p.logger.Error("authentication turn failed", fields...)
}
