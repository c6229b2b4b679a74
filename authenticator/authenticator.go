package authenticator

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/errors"
)

// Options tunes an Authenticator. The zero value selects the defaults
// documented on each field.
type Options struct {
	// UserAttribute is the provider attribute usernames are looked up by.
	// Default "username".
	UserAttribute string

	// PollInterval is the sleep between push status queries.
	// Default DefaultPollInterval.
	PollInterval time.Duration

	// PollTimeout is the wall-clock budget for push approval.
	// Default DefaultPollTimeout.
	PollTimeout time.Duration

	// Clock supplies time for the polling loop. Default is the real clock;
	// tests inject clockwork.NewFakeClock.
	Clock clockwork.Clock

	// Logger receives diagnostic logs. Default is a nop logger.
	Logger *zap.Logger
}

// Authenticator is a stateless per-call façade over a DirectoryClient.
// It owns no state across calls; every operation is a fresh round trip.
type Authenticator struct {
	directory     DirectoryClient
	userAttribute string
	pollInterval  time.Duration
	pollTimeout   time.Duration
	clock         clockwork.Clock
	logger        *zap.Logger
}

// New creates an Authenticator over the given DirectoryClient.
// A nil directory is a configuration error.
func New(directory DirectoryClient, opts Options) (*Authenticator, error) {
	if directory == nil {
		return nil, errors.NewConfigurationError("authenticator requires a directory client", nil)
	}
	if opts.UserAttribute == "" {
		opts.UserAttribute = "username"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Authenticator{
		directory:     directory,
		userAttribute: opts.UserAttribute,
		pollInterval:  opts.PollInterval,
		pollTimeout:   opts.PollTimeout,
		clock:         opts.Clock,
		logger:        opts.Logger,
	}, nil
}

// ResolveUser maps a gateway username to exactly one provider identity.
// Zero matches is USER_NOT_FOUND, more than one is AMBIGUOUS_USER, and a
// failed lookup is DIRECTORY_ERROR.
func (a *Authenticator) ResolveUser(ctx context.Context, username string) (UserIdentity, error) {
	users, err := a.directory.FindUsers(ctx, a.userAttribute, username)
	if err != nil {
		return UserIdentity{}, errors.NewDirectoryError(
			fmt.Sprintf("user lookup failed for attribute %s", a.userAttribute), err)
	}
	switch {
	case len(users) > 1:
		return UserIdentity{}, errors.NewAmbiguousUser(username, a.userAttribute)
	case len(users) < 1:
		return UserIdentity{}, errors.NewUserNotFound(username, a.userAttribute)
	}
	a.logger.Debug("resolved user",
		zap.String("username", username),
		zap.Int("user_id", users[0].ID))
	return users[0], nil
}

// ListEnrolledFactors returns the user's enrolled MFA devices.
// An empty result is valid and distinct from a failed provider call.
func (a *Authenticator) ListEnrolledFactors(ctx context.Context, username string) ([]EnrolledFactor, error) {
	user, err := a.ResolveUser(ctx, username)
	if err != nil {
		return nil, err
	}
	factors, err := a.directory.ListFactors(ctx, user.ID)
	if err != nil {
		return nil, errors.NewDirectoryError(
			fmt.Sprintf("listing factors failed for user id %d", user.ID), err)
	}
	return factors, nil
}

// DefaultFactor returns the first enrolled factor marked default.
// A user with no default factor (including a user with no factors at all)
// is FACTOR_NOT_FOUND.
func (a *Authenticator) DefaultFactor(ctx context.Context, username string) (EnrolledFactor, error) {
	factors, err := a.ListEnrolledFactors(ctx, username)
	if err != nil {
		return EnrolledFactor{}, err
	}
	for _, factor := range factors {
		if factor.Default {
			return factor, nil
		}
	}
	return EnrolledFactor{}, errors.NewFactorNotFound("no default MFA factor found")
}

// VerifyOTP submits a one-time passcode for the given factor and returns the
// provider's verdict verbatim. A factorID of 0 means the user's default
// factor. A wrong code is (false, nil); it is never retried here.
func (a *Authenticator) VerifyOTP(ctx context.Context, username, code string, factorID int) (bool, error) {
	user, err := a.ResolveUser(ctx, username)
	if err != nil {
		return false, err
	}
	factorID, err = a.resolveFactorID(ctx, username, factorID)
	if err != nil {
		return false, err
	}
	ok, err := a.directory.VerifyFactor(ctx, user.ID, factorID, code)
	if err != nil {
		return false, errors.NewDirectoryError(
			fmt.Sprintf("OTP verification failed for user id %d", user.ID), err)
	}
	return ok, nil
}

// VerifyPush starts a push challenge on the given factor and polls it until
// the user answers, the provider reports an unknown status, or the poll
// timeout elapses. A factorID of 0 means the user's default factor.
//
// The loop blocks the calling session for up to the poll timeout. That is
// deliberate: the session has nothing else to do while a human decides.
func (a *Authenticator) VerifyPush(ctx context.Context, username string, factorID int) (bool, error) {
	user, err := a.ResolveUser(ctx, username)
	if err != nil {
		return false, err
	}
	factorID, err = a.resolveFactorID(ctx, username, factorID)
	if err != nil {
		return false, err
	}

	expiresIn := int(a.pollTimeout / time.Second)
	activation, err := a.directory.StartPushChallenge(ctx, user.ID, factorID, expiresIn)
	if err != nil {
		return false, errors.NewDirectoryError(
			fmt.Sprintf("starting push challenge failed for user id %d", user.ID), err)
	}
	a.logger.Debug("push challenge started",
		zap.String("activation_id", activation.ID),
		zap.Int("user_id", user.ID),
		zap.Int("factor_id", factorID))

	deadline := a.clock.Now().Add(a.pollTimeout)
	for a.clock.Now().Before(deadline) {
		status, err := a.directory.PollPushChallenge(ctx, user.ID, activation.ID)
		if err != nil {
			return false, errors.NewDirectoryError(
				fmt.Sprintf("polling push challenge %s failed", activation.ID), err)
		}
		switch status {
		case PushPending:
			a.clock.Sleep(a.pollInterval)
		case PushAccepted:
			a.logger.Debug("push accepted", zap.String("activation_id", activation.ID))
			return true, nil
		case PushRejected:
			a.logger.Debug("push rejected", zap.String("activation_id", activation.ID))
			return false, nil
		default:
			return false, errors.NewDirectoryError(
				fmt.Sprintf("push verification status not recognized: %s", status), nil)
		}
	}
	return false, errors.NewPushTimeout("push verification timed out")
}

// resolveFactorID substitutes the default factor for an unset selection.
func (a *Authenticator) resolveFactorID(ctx context.Context, username string, factorID int) (int, error) {
	if factorID != 0 {
		return factorID, nil
	}
	factor, err := a.DefaultFactor(ctx, username)
	if err != nil {
		return 0, err
	}
	return factor.ID, nil
}
