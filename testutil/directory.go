// Package testutil provides mock implementations for plugin tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/authenticator"
)

// ============================================================================
// MockDirectory - implements authenticator.DirectoryClient
// ============================================================================

// MockDirectory implements authenticator.DirectoryClient for testing.
// Supports configurable responses, error injection and call tracking.
//
// Resolution order per method: behavior function if set, injected error if
// set, otherwise the canned data fields.
type MockDirectory struct {
	mu sync.Mutex

	// Configurable behavior functions
	FindUsersFunc          func(ctx context.Context, attribute, value string) ([]authenticator.UserIdentity, error)
	ListFactorsFunc        func(ctx context.Context, userID int) ([]authenticator.EnrolledFactor, error)
	VerifyFactorFunc       func(ctx context.Context, userID, factorID int, code string) (bool, error)
	StartPushChallengeFunc func(ctx context.Context, userID, factorID, expiresIn int) (authenticator.PushActivation, error)
	PollPushChallengeFunc  func(ctx context.Context, userID int, activationID string) (authenticator.PushStatus, error)

	// Error injection (used if behavior function is nil)
	FindUsersErr          error
	ListFactorsErr        error
	VerifyFactorErr       error
	StartPushChallengeErr error
	PollPushChallengeErr  error

	// Canned data (used if behavior function and injected error are nil)
	Users        []authenticator.UserIdentity
	Factors      []authenticator.EnrolledFactor
	VerifyResult bool
	Activation   authenticator.PushActivation

	// PushStatuses is consumed one status per poll; the last entry repeats
	// once exhausted. Empty means every poll reports accepted.
	PushStatuses []authenticator.PushStatus
	pollIndex    int

	// Call tracking
	FindUsersCalls          []FindUsersCall
	ListFactorsCalls        []int
	VerifyFactorCalls       []VerifyFactorCall
	StartPushChallengeCalls []StartPushChallengeCall
	PollPushChallengeCalls  []PollPushChallengeCall
}

// FindUsersCall tracks parameters for FindUsers calls.
type FindUsersCall struct {
	Attribute string
	Value     string
}

// VerifyFactorCall tracks parameters for VerifyFactor calls.
type VerifyFactorCall struct {
	UserID   int
	FactorID int
	Code     string
}

// StartPushChallengeCall tracks parameters for StartPushChallenge calls.
type StartPushChallengeCall struct {
	UserID    int
	FactorID  int
	ExpiresIn int
}

// PollPushChallengeCall tracks parameters for PollPushChallenge calls.
type PollPushChallengeCall struct {
	UserID       int
	ActivationID string
}

// FindUsers implements authenticator.DirectoryClient.
func (m *MockDirectory) FindUsers(ctx context.Context, attribute, value string) ([]authenticator.UserIdentity, error) {
	m.mu.Lock()
	m.FindUsersCalls = append(m.FindUsersCalls, FindUsersCall{Attribute: attribute, Value: value})
	m.mu.Unlock()

	if m.FindUsersFunc != nil {
		return m.FindUsersFunc(ctx, attribute, value)
	}
	if m.FindUsersErr != nil {
		return nil, m.FindUsersErr
	}
	return m.Users, nil
}

// ListFactors implements authenticator.DirectoryClient.
func (m *MockDirectory) ListFactors(ctx context.Context, userID int) ([]authenticator.EnrolledFactor, error) {
	m.mu.Lock()
	m.ListFactorsCalls = append(m.ListFactorsCalls, userID)
	m.mu.Unlock()

	if m.ListFactorsFunc != nil {
		return m.ListFactorsFunc(ctx, userID)
	}
	if m.ListFactorsErr != nil {
		return nil, m.ListFactorsErr
	}
	return m.Factors, nil
}

// VerifyFactor implements authenticator.DirectoryClient.
func (m *MockDirectory) VerifyFactor(ctx context.Context, userID, factorID int, code string) (bool, error) {
	m.mu.Lock()
	m.VerifyFactorCalls = append(m.VerifyFactorCalls, VerifyFactorCall{UserID: userID, FactorID: factorID, Code: code})
	m.mu.Unlock()

	if m.VerifyFactorFunc != nil {
		return m.VerifyFactorFunc(ctx, userID, factorID, code)
	}
	if m.VerifyFactorErr != nil {
		return false, m.VerifyFactorErr
	}
	return m.VerifyResult, nil
}

// StartPushChallenge implements authenticator.DirectoryClient.
func (m *MockDirectory) StartPushChallenge(ctx context.Context, userID, factorID, expiresIn int) (authenticator.PushActivation, error) {
	m.mu.Lock()
	m.StartPushChallengeCalls = append(m.StartPushChallengeCalls, StartPushChallengeCall{
		UserID:    userID,
		FactorID:  factorID,
		ExpiresIn: expiresIn,
	})
	m.mu.Unlock()

	if m.StartPushChallengeFunc != nil {
		return m.StartPushChallengeFunc(ctx, userID, factorID, expiresIn)
	}
	if m.StartPushChallengeErr != nil {
		return authenticator.PushActivation{}, m.StartPushChallengeErr
	}
	if m.Activation.ID != "" {
		return m.Activation, nil
	}
	return authenticator.PushActivation{
		ID:        "activation-1",
		ExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

// PollPushChallenge implements authenticator.DirectoryClient.
func (m *MockDirectory) PollPushChallenge(ctx context.Context, userID int, activationID string) (authenticator.PushStatus, error) {
	m.mu.Lock()
	m.PollPushChallengeCalls = append(m.PollPushChallengeCalls, PollPushChallengeCall{
		UserID:       userID,
		ActivationID: activationID,
	})
	var status authenticator.PushStatus
	if len(m.PushStatuses) == 0 {
		status = authenticator.PushAccepted
	} else if m.pollIndex < len(m.PushStatuses) {
		status = m.PushStatuses[m.pollIndex]
		m.pollIndex++
	} else {
		status = m.PushStatuses[len(m.PushStatuses)-1]
	}
	m.mu.Unlock()

	if m.PollPushChallengeFunc != nil {
		return m.PollPushChallengeFunc(ctx, userID, activationID)
	}
	if m.PollPushChallengeErr != nil {
		return "", m.PollPushChallengeErr
	}
	return status, nil
}

// PollCount returns how many times PollPushChallenge was called.
func (m *MockDirectory) PollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.PollPushChallengeCalls)
}
