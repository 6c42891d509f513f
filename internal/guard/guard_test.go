package guard

import (
	"testing"

	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/session"
)

func TestEvaluate(t *testing.T) {
	account := &model.Account{ID: "acc-1"}

	tests := []struct {
		name        string
		requireAuth bool
		state       session.State
		want        Decision
	}{
		{"loading public", false, session.State{Loading: true}, Wait},
		{"loading protected", true, session.State{Loading: true, Account: account}, Wait},
		{"anonymous public", false, session.State{}, Permit},
		{"anonymous protected", true, session.State{}, Prompt},
		{"signed in protected", true, session.State{Account: account}, Permit},
		{"signed in public", false, session.State{Account: account}, Permit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.requireAuth, tt.state); got != tt.want {
				t.Errorf("Evaluate(%v, %+v) = %q, want %q", tt.requireAuth, tt.state, got, tt.want)
			}
		})
	}
}

func TestEvaluate_ProtectedNeverPermitsAnonymous(t *testing.T) {
	for _, loading := range []bool{true, false} {
		for _, admin := range []bool{true, false} {
			state := session.State{Loading: loading, IsAdmin: admin}
			if Evaluate(true, state) == Permit {
				t.Errorf("Evaluate(true, %+v) = Permit without an account", state)
			}
		}
	}
}

func TestEvaluateAdmin(t *testing.T) {
	account := &model.Account{ID: "acc-1"}

	tests := []struct {
		name  string
		state session.State
		want  Decision
	}{
		{"loading", session.State{Loading: true, Account: account, IsAdmin: true}, Wait},
		{"anonymous", session.State{}, Denied},
		{"signed in non-admin", session.State{Account: account}, Denied},
		{"admin flag without account", session.State{IsAdmin: true}, Denied},
		{"admin", session.State{Account: account, IsAdmin: true}, Permit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateAdmin(tt.state); got != tt.want {
				t.Errorf("EvaluateAdmin(%+v) = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

func TestPromptOptions(t *testing.T) {
	opts := PromptOptions()
	if len(opts) != 2 || opts[0] != model.PageLogin || opts[1] != model.PageHome {
		t.Errorf("PromptOptions() = %v, want [login home]", opts)
	}
}
