// Package authenticator provides OneLogin-backed multi-factor verification
// for the Safeguard sessions plugin. It resolves gateway usernames to
// provider identities, selects among enrolled factors and runs either the
// one-time-passcode or the push-approval protocol against a DirectoryClient.
//
// # Verification Flow
//
// 1. ResolveUser maps the gateway username to exactly one provider identity
// 2. The factor is either the caller's explicit selection or the user's default
// 3. VerifyOTP submits a code once; VerifyPush starts a challenge and polls it
//
// Every method is a fresh round trip: the Authenticator holds no state
// between calls, so a single instance is safe for concurrent sessions as
// long as the DirectoryClient tolerates concurrent calls.
package authenticator

import (
	"context"
	"time"
)

const (
	// DefaultPollInterval is how long the push polling loop sleeps between
	// provider queries.
	DefaultPollInterval = 5 * time.Second

	// DefaultPollTimeout is the wall-clock budget for a push approval.
	// It is also the expiry handed to the provider when the challenge starts.
	DefaultPollTimeout = 60 * time.Second
)

// PushStatus represents the provider-reported state of a push challenge.
type PushStatus string

const (
	// PushPending indicates the user has not answered the push yet.
	PushPending PushStatus = "pending"
	// PushAccepted indicates the user approved the push.
	PushAccepted PushStatus = "accepted"
	// PushRejected indicates the user declined the push.
	PushRejected PushStatus = "rejected"
)

// IsValid returns true if the PushStatus is a known value.
func (s PushStatus) IsValid() bool {
	switch s {
	case PushPending, PushAccepted, PushRejected:
		return true
	}
	return false
}

// String returns the string representation of the PushStatus.
func (s PushStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the status ends the polling loop.
func (s PushStatus) IsTerminal() bool {
	switch s {
	case PushAccepted, PushRejected:
		return true
	}
	return false
}

// UserIdentity is a provider-resolved user: the opaque provider id plus the
// lookup attribute value it was resolved from. Identities are resolved fresh
// on every authentication attempt and never cached across sessions.
type UserIdentity struct {
	// ID is the provider-assigned user id.
	ID int

	// Attribute is the lookup attribute value the user was resolved by
	// (e.g. the gateway username).
	Attribute string
}

// EnrolledFactor is a provider-registered MFA device belonging to a user.
type EnrolledFactor struct {
	// ID is the provider-assigned device id.
	ID int

	// DisplayName is the user-facing device name shown in selection menus.
	DisplayName string

	// Default marks the device the provider considers primary. At most one
	// factor per user is treated as default; the first one found wins.
	Default bool
}

// PushActivation is the short-lived challenge record created when push
// verification starts. It is polled until terminal or expired, then
// discarded; it never outlives one authentication attempt.
type PushActivation struct {
	// ID identifies the challenge for polling.
	ID string

	// ExpiresAt is when the provider stops accepting answers.
	ExpiresAt time.Time
}

// DirectoryClient is the identity-provider API surface the Authenticator
// depends on. Implementations must distinguish a failed call (non-nil error)
// from a successful call with a negative or empty answer.
//
// The production implementation is the onelogin package; tests use the
// testutil mock.
type DirectoryClient interface {
	// FindUsers returns every user whose attribute matches value.
	// Zero, one or many matches are all successful responses.
	FindUsers(ctx context.Context, attribute, value string) ([]UserIdentity, error)

	// ListFactors returns the user's enrolled MFA devices.
	// An empty slice with a nil error means no devices are enrolled.
	ListFactors(ctx context.Context, userID int) ([]EnrolledFactor, error)

	// VerifyFactor submits an OTP code for the given device.
	// A wrong code is (false, nil), not an error.
	VerifyFactor(ctx context.Context, userID, factorID int, code string) (bool, error)

	// StartPushChallenge triggers a push notification on the given device.
	// expiresIn is the challenge lifetime in seconds.
	StartPushChallenge(ctx context.Context, userID, factorID, expiresIn int) (PushActivation, error)

	// PollPushChallenge reports the current status of a push challenge.
	PollPushChallenge(ctx context.Context, userID int, activationID string) (PushStatus, error)
}
