package plugin_test

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/authenticator"
	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/plugin"
	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/testutil"
)

// twoFactorDirectory enrolls Device A (id 7, default) and Device B (id 9)
// for user alice (id 42).
func twoFactorDirectory() *testutil.MockDirectory {
	return &testutil.MockDirectory{
		Users: []authenticator.UserIdentity{{ID: 42, Attribute: "alice"}},
		Factors: []authenticator.EnrolledFactor{
			{ID: 7, DisplayName: "Device A", Default: true},
			{ID: 9, DisplayName: "Device B"},
		},
	}
}

func newPlugin(t *testing.T, mock *testutil.MockDirectory, settings plugin.Settings) *plugin.Plugin {
	t.Helper()
	auth, err := authenticator.New(mock, authenticator.Options{})
	if err != nil {
		t.Fatalf("authenticator.New: %v", err)
	}
	return plugin.New(auth, settings, nil)
}

func sshTurn(credential string) *plugin.Turn {
	return &plugin.Turn{
		Username:      "alice",
		Credential:    credential,
		Protocol:      "ssh",
		KeyValuePairs: map[string]string{},
		State:         plugin.NewSessionState(),
	}
}

func TestSelectCommand_Disabled(t *testing.T) {
	p := newPlugin(t, twoFactorDirectory(), plugin.Settings{FactorSelectionEnabled: false})

	got := p.HandleAuthenticationTurn(context.Background(), sshTurn(plugin.SelectFactorCommand))
	want := plugin.Deny("Factor selection not available")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectCommand_UnsupportedProtocol(t *testing.T) {
	p := newPlugin(t, twoFactorDirectory(), plugin.Settings{FactorSelectionEnabled: true})

	turn := sshTurn(plugin.SelectFactorCommand)
	turn.Protocol = "rdp"
	got := p.HandleAuthenticationTurn(context.Background(), turn)
	want := plugin.Deny("Factor selection not supported")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectCommand_NoFactors(t *testing.T) {
	mock := twoFactorDirectory()
	mock.Factors = nil
	p := newPlugin(t, mock, plugin.Settings{FactorSelectionEnabled: true})

	got := p.HandleAuthenticationTurn(context.Background(), sshTurn(plugin.SelectFactorCommand))
	want := plugin.Deny("No factors found")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectCommand_EmitsMenu(t *testing.T) {
	p := newPlugin(t, twoFactorDirectory(), plugin.Settings{FactorSelectionEnabled: true})

	turn := sshTurn(plugin.SelectFactorCommand)
	got := p.HandleAuthenticationTurn(context.Background(), turn)

	want := plugin.NeedInfo("1) Device A\n2) Device B\nSelect a factor: ", plugin.SelectionAnswerKey)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
	if !turn.State.FactorSelectionInProgress {
		t.Error("FactorSelectionInProgress = false, want true")
	}
	wantFactors := []plugin.FactorChoice{
		{ID: 7, DisplayName: "Device A"},
		{ID: 9, DisplayName: "Device B"},
	}
	if diff := cmp.Diff(wantFactors, turn.State.EnrolledFactors); diff != "" {
		t.Errorf("enrolled factors mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectCommand_TelnetAllowed(t *testing.T) {
	p := newPlugin(t, twoFactorDirectory(), plugin.Settings{FactorSelectionEnabled: true})

	turn := sshTurn(plugin.SelectFactorCommand)
	turn.Protocol = "telnet"
	got := p.HandleAuthenticationTurn(context.Background(), turn)
	if got.Action != plugin.ActionNeedInfo {
		t.Errorf("decision = %+v, want need_info over telnet", got)
	}
}

// selectionTurn is a turn arriving while factor selection is in progress,
// with the menu answer stored under the well-known key.
func selectionTurn(answer string) *plugin.Turn {
	turn := sshTurn("")
	turn.State.FactorSelectionInProgress = true
	turn.State.EnrolledFactors = []plugin.FactorChoice{
		{ID: 7, DisplayName: "Device A"},
		{ID: 9, DisplayName: "Device B"},
	}
	turn.KeyValuePairs[plugin.SelectionAnswerKey] = answer
	return turn
}

func TestFinishSelection_ValidChoice(t *testing.T) {
	p := newPlugin(t, twoFactorDirectory(), plugin.Settings{FactorSelectionEnabled: true})

	turn := selectionTurn("2")
	turn.KeyValuePairs[plugin.CredentialKey] = "stale-otp"
	got := p.HandleAuthenticationTurn(context.Background(), turn)

	want := plugin.NeedInfo(plugin.CredentialPrompt, plugin.CredentialKey)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
	if turn.State.SelectedFactorID != 9 {
		t.Errorf("SelectedFactorID = %d, want 9", turn.State.SelectedFactorID)
	}
	if turn.State.FactorSelectionInProgress {
		t.Error("FactorSelectionInProgress = true, want false")
	}
	if _, buffered := turn.KeyValuePairs[plugin.CredentialKey]; buffered {
		t.Error("buffered credential should be discarded after selection")
	}
}

func TestFinishSelection_InvalidChoices(t *testing.T) {
	for _, answer := range []string{"0", "3", "abc", "", "-1"} {
		t.Run(answer, func(t *testing.T) {
			p := newPlugin(t, twoFactorDirectory(), plugin.Settings{FactorSelectionEnabled: true})

			turn := selectionTurn(answer)
			got := p.HandleAuthenticationTurn(context.Background(), turn)

			want := plugin.Deny("Invalid selection")
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("decision mismatch (-want +got):\n%s", diff)
			}
			// The flag clears regardless of outcome.
			if turn.State.FactorSelectionInProgress {
				t.Error("FactorSelectionInProgress = true, want false")
			}
			if turn.State.SelectedFactorID != 0 {
				t.Errorf("SelectedFactorID = %d, want 0", turn.State.SelectedFactorID)
			}
		})
	}
}

func TestOTPTurn_Success(t *testing.T) {
	mock := twoFactorDirectory()
	mock.VerifyResult = true
	p := newPlugin(t, mock, plugin.Settings{FactorSelectionEnabled: true})

	got := p.HandleAuthenticationTurn(context.Background(), sshTurn("123456"))
	want := plugin.Accept("OTP authentication successful")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
	// No explicit selection, so the default factor is used automatically.
	if got := mock.VerifyFactorCalls[0].FactorID; got != 7 {
		t.Errorf("FactorID = %d, want default factor id 7", got)
	}
}

func TestOTPTurn_SelectedFactor(t *testing.T) {
	mock := twoFactorDirectory()
	mock.VerifyResult = true
	p := newPlugin(t, mock, plugin.Settings{FactorSelectionEnabled: true})

	turn := sshTurn("123456")
	turn.State.SelectedFactorID = 9
	if got := p.HandleAuthenticationTurn(context.Background(), turn); got.Action != plugin.ActionAccept {
		t.Fatalf("decision = %+v, want accept", got)
	}
	if got := mock.VerifyFactorCalls[0].FactorID; got != 9 {
		t.Errorf("FactorID = %d, want selected factor id 9", got)
	}
}

func TestOTPTurn_WrongCode(t *testing.T) {
	mock := twoFactorDirectory()
	mock.VerifyResult = false
	p := newPlugin(t, mock, plugin.Settings{FactorSelectionEnabled: true})

	got := p.HandleAuthenticationTurn(context.Background(), sshTurn("654321"))
	want := plugin.Deny("OTP authentication failed")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
}

func TestPushTurn_Accepted(t *testing.T) {
	mock := twoFactorDirectory()
	mock.PushStatuses = []authenticator.PushStatus{authenticator.PushAccepted}
	p := newPlugin(t, mock, plugin.Settings{FactorSelectionEnabled: true})

	got := p.HandleAuthenticationTurn(context.Background(), sshTurn(""))
	want := plugin.Accept("Push verification successful")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
}

func TestPushTurn_Rejected(t *testing.T) {
	mock := twoFactorDirectory()
	mock.PushStatuses = []authenticator.PushStatus{authenticator.PushRejected}
	p := newPlugin(t, mock, plugin.Settings{FactorSelectionEnabled: true})

	got := p.HandleAuthenticationTurn(context.Background(), sshTurn(""))
	want := plugin.Deny("Push verification failed")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
}

func TestProviderFailure_GenericDenyOnly(t *testing.T) {
	tests := []struct {
		name string
		mock func() *testutil.MockDirectory
		turn *plugin.Turn
	}{
		{
			name: "user lookup fails during OTP",
			mock: func() *testutil.MockDirectory {
				m := twoFactorDirectory()
				m.FindUsersErr = stderrors.New("internal: connection refused to api.us.onelogin.com")
				return m
			},
			turn: sshTurn("123456"),
		},
		{
			name: "factor listing fails during selection",
			mock: func() *testutil.MockDirectory {
				m := twoFactorDirectory()
				m.ListFactorsErr = stderrors.New("internal: http 500")
				return m
			},
			turn: sshTurn(plugin.SelectFactorCommand),
		},
		{
			name: "push start fails",
			mock: func() *testutil.MockDirectory {
				m := twoFactorDirectory()
				m.StartPushChallengeErr = stderrors.New("internal: http 502")
				return m
			},
			turn: sshTurn(""),
		},
		{
			name: "unknown user",
			mock: func() *testutil.MockDirectory {
				m := twoFactorDirectory()
				m.Users = nil
				return m
			},
			turn: sshTurn("123456"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newPlugin(t, tc.mock(), plugin.Settings{FactorSelectionEnabled: true})

			got := p.HandleAuthenticationTurn(context.Background(), tc.turn)
			if got.Action != plugin.ActionDeny {
				t.Fatalf("action = %q, want deny", got.Action)
			}
			if got.Reason != "An error occurred" {
				t.Errorf("reason = %q, want the generic reason", got.Reason)
			}
			if strings.Contains(got.Reason, "internal") {
				t.Errorf("reason %q leaks internal error text", got.Reason)
			}
		})
	}
}

func TestSelectionThenOTP_EndToEnd(t *testing.T) {
	mock := twoFactorDirectory()
	mock.VerifyResult = true
	p := newPlugin(t, mock, plugin.Settings{FactorSelectionEnabled: true})
	ctx := context.Background()

	// Turn 1: the !select command brings up the menu.
	state := plugin.NewSessionState()
	kv := map[string]string{}
	turn := &plugin.Turn{Username: "alice", Credential: plugin.SelectFactorCommand, Protocol: "ssh", KeyValuePairs: kv, State: state}
	if got := p.HandleAuthenticationTurn(ctx, turn); got.Action != plugin.ActionNeedInfo {
		t.Fatalf("turn 1 = %+v, want need_info", got)
	}

	// Turn 2: the host stored the answer; selection completes.
	kv[plugin.SelectionAnswerKey] = "2"
	turn = &plugin.Turn{Username: "alice", Credential: "", Protocol: "ssh", KeyValuePairs: kv, State: state}
	if got := p.HandleAuthenticationTurn(ctx, turn); got.Action != plugin.ActionNeedInfo {
		t.Fatalf("turn 2 = %+v, want need_info", got)
	}

	// Turn 3: the OTP arrives and verifies against the chosen factor.
	turn = &plugin.Turn{Username: "alice", Credential: "123456", Protocol: "ssh", KeyValuePairs: kv, State: state}
	got := p.HandleAuthenticationTurn(ctx, turn)
	if got.Action != plugin.ActionAccept {
		t.Fatalf("turn 3 = %+v, want accept", got)
	}
	if factorID := mock.VerifyFactorCalls[0].FactorID; factorID != 9 {
		t.Errorf("FactorID = %d, want selected factor id 9", factorID)
	}
}
