package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/example/faultline/internal/ctxutil"
)

func TestAuthorize(t *testing.T) {
	a, err := New(true, map[string]string{
		"이영희": RoleCrew,
		"김철수": RoleSupport,
		"박팀장": RoleSupervisor,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		actor  string
		action Action
		want   bool
	}{
		{"이영희", ActionIntake, true},
		{"이영희", ActionStart, false},
		{"김철수", ActionIntake, true},
		{"김철수", ActionStart, true},
		{"김철수", ActionComplete, true},
		{"김철수", ActionBackfill, true},
		{"김철수", ActionReopen, false},
		{"박팀장", ActionReopen, true},
		{"박팀장", ActionIntake, true},
		{"외부인", ActionIntake, false},
		{"", ActionIntake, false},
		// Actors named like a role get nothing from the name.
		{"supervisor", ActionReopen, false},
		{"support", ActionStart, false},
		{"crew", ActionIntake, false},
		{"role:supervisor", ActionReopen, false},
	}

	for _, tt := range tests {
		t.Run(tt.actor+"/"+string(tt.action), func(t *testing.T) {
			ctx := ctxutil.WithActorID(context.Background(), tt.actor)
			err := a.Authorize(ctx, tt.action)
			if tt.want && err != nil {
				t.Errorf("Authorize() = %v, want allowed", err)
			}
			if !tt.want && !errors.Is(err, ErrForbidden) {
				t.Errorf("Authorize() = %v, want ErrForbidden", err)
			}
		})
	}
}

func TestNew_RejectsRoleSubjectAsActor(t *testing.T) {
	if _, err := New(true, map[string]string{"role:support": RoleCrew}); err == nil {
		t.Error("expected error for an actor id carrying the role prefix")
	}
}

func TestAuthorize_Disabled(t *testing.T) {
	a, err := New(false, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Authorize(context.Background(), ActionReopen); err != nil {
		t.Errorf("disabled Authorize() = %v, want nil", err)
	}

	var nilAuth *Authorizer
	if err := nilAuth.Authorize(context.Background(), ActionStart); err != nil {
		t.Errorf("nil Authorize() = %v, want nil", err)
	}
}
