// Package plugin implements the session controller for OneLogin MFA
// mediation: an interactive, multi-turn dialogue that turns per-turn user
// input into accept, deny or need-more-input decisions.
//
// # Dialogue State Machine
//
// Valid transitions, driven by one inbound turn each:
//   - awaiting credential -> factor selection (the !select command)
//   - factor selection -> awaiting credential (a valid 1-based choice)
//   - awaiting credential -> terminal (OTP or push verdict, or a deny)
//
// The hosting session manager owns the session lifecycle; this package owns
// only the decision logic. All mutable state lives in the SessionState the
// host passes back in on every turn, so concurrent sessions never share
// anything.
package plugin

import "fmt"

const (
	// SelectFactorCommand is the reserved credential literal that starts
	// the factor-selection sub-dialogue.
	SelectFactorCommand = "!select"

	// SelectionAnswerKey is the key-value field the factor-selection answer
	// is stored under by the hosting session manager.
	SelectionAnswerKey = "user_factor_selection"

	// CredentialKey is the key-value field the buffered MFA credential
	// lives under.
	CredentialKey = "otp"

	// CredentialPrompt asks for the MFA credential after factor selection.
	CredentialPrompt = "MFA password: "

	// SelectionPromptSuffix closes the enumerated factor menu.
	SelectionPromptSuffix = "Select a factor: "
)

// DefaultFactorSelectionProtocols lists the text-terminal protocols the
// factor-selection dialogue works over.
var DefaultFactorSelectionProtocols = []string{"ssh", "telnet"}

// Deny reasons sent to the remote party. Internal error detail never
// appears here.
const (
	DenyReasonInvalidSelection     = "Invalid selection"
	DenyReasonSelectionDisabled    = "Factor selection not available"
	DenyReasonProtocolNotSupported = "Factor selection not supported"
	DenyReasonNoFactors            = "No factors found"
	DenyReasonOTPFailed            = "OTP authentication failed"
	DenyReasonPushFailed           = "Push verification failed"
	DenyReasonError                = "An error occurred"
)

// Accept reasons reported to the hosting session manager.
const (
	AcceptReasonOTP  = "OTP authentication successful"
	AcceptReasonPush = "Push verification successful"
)

// Action is the kind of decision a turn produces.
type Action string

const (
	// ActionAccept lets the session proceed.
	ActionAccept Action = "accept"
	// ActionDeny terminates the authentication attempt.
	ActionDeny Action = "deny"
	// ActionNeedInfo asks the remote party for another input turn.
	ActionNeedInfo Action = "need_info"
)

// IsValid returns true if the Action is a known value.
func (a Action) IsValid() bool {
	switch a {
	case ActionAccept, ActionDeny, ActionNeedInfo:
		return true
	}
	return false
}

// String returns the string representation of the Action.
func (a Action) String() string {
	return string(a)
}

// Decision is what one authentication turn emits to the hosting session
// manager: accept with a reason, deny with a reason, or a request for more
// input with a prompt and the field name the answer should be stored under.
type Decision struct {
	Action      Action
	Reason      string
	Prompt      string
	QuestionKey string
}

// Accept builds an accept decision.
func Accept(reason string) Decision {
	return Decision{Action: ActionAccept, Reason: reason}
}

// Deny builds a deny decision.
func Deny(reason string) Decision {
	return Decision{Action: ActionDeny, Reason: reason}
}

// NeedInfo builds a need-more-input decision. The host prompts the remote
// party and stores the answer under key before the next turn.
func NeedInfo(prompt, key string) Decision {
	return Decision{Action: ActionNeedInfo, Prompt: prompt, QuestionKey: key}
}

// FactorChoice is one entry of the factor-selection menu.
type FactorChoice struct {
	ID          int
	DisplayName string
}

// SessionState is the dialogue state for one authentication session.
// Created empty at session start, mutated only by dialogue steps, discarded
// when the session ends. The hosting session manager is responsible for
// persisting it between turns.
type SessionState struct {
	// FactorSelectionInProgress is set while the menu answer is awaited.
	FactorSelectionInProgress bool

	// EnrolledFactors is the menu shown to the user, in insertion order.
	EnrolledFactors []FactorChoice

	// SelectedFactorID is the user's explicit choice; 0 means none, in
	// which case verification uses the provider default factor.
	SelectedFactorID int
}

// NewSessionState returns the initial state for a fresh session.
func NewSessionState() *SessionState {
	return &SessionState{}
}

// Turn is one inbound authentication turn: the submitted credential or
// command plus the session context it arrived in.
type Turn struct {
	// Username is the MFA identity being authenticated.
	Username string

	// Credential is the submitted credential or command. Empty means the
	// user pressed enter without typing, which requests push verification.
	Credential string

	// Protocol is the connection protocol (e.g. "ssh", "rdp").
	Protocol string

	// KeyValuePairs is the per-session answer store shared with the host.
	// The factor-selection answer is read back from it and the buffered
	// credential is dropped from it after a selection.
	KeyValuePairs map[string]string

	// State is the session's dialogue state, owned by this package.
	State *SessionState
}

// selectionPrompt renders the factor menu: one "<position>) <name>" line per
// factor (1-based, insertion order) followed by the selection prompt.
func selectionPrompt(factors []FactorChoice) string {
	prompt := ""
	for position, factor := range factors {
		prompt += fmt.Sprintf("%d) %s\n", position+1, factor.DisplayName)
	}
	return prompt + SelectionPromptSuffix
}
