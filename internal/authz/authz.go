// Package authz decides which actor may perform which lifecycle action.
package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/example/faultline/internal/ctxutil"
)

// ErrForbidden is returned when the actor lacks the permission for an action.
var ErrForbidden = errors.New("forbidden")

// Action is a permission name.
type Action string

const (
	ActionIntake   Action = "intake"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionReopen   Action = "reopen"
	ActionBackfill Action = "backfill"
	ActionReplay   Action = "replay"
)

// Role names, mirrored from config.
const (
	RoleCrew       = "crew"
	RoleSupport    = "support"
	RoleSupervisor = "supervisor"
)

// rolePrefix keeps role subjects apart from actor names, so an actor called
// "supervisor" is not the supervisor role.
const rolePrefix = "role:"

func roleSubject(role string) string { return rolePrefix + role }

const rbacModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.act == p.act
`

// Authorizer checks actions against an in-memory RBAC policy.
type Authorizer struct {
	enforcer *casbin.Enforcer
	enabled  bool
}

// New builds an Authorizer. users maps actor names onto roles. When enabled
// is false every action is allowed.
func New(enabled bool, users map[string]string) (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	policies := [][]string{
		{roleSubject(RoleCrew), string(ActionIntake)},
		{roleSubject(RoleSupport), string(ActionStart)},
		{roleSubject(RoleSupport), string(ActionComplete)},
		{roleSubject(RoleSupport), string(ActionBackfill)},
		{roleSubject(RoleSupport), string(ActionReplay)},
		{roleSubject(RoleSupervisor), string(ActionReopen)},
	}
	if _, err := e.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("failed to add policies: %w", err)
	}

	// supervisor ⊃ support ⊃ crew
	inherits := [][]string{
		{roleSubject(RoleSupport), roleSubject(RoleCrew)},
		{roleSubject(RoleSupervisor), roleSubject(RoleSupport)},
	}
	for actor, role := range users {
		if strings.HasPrefix(actor, rolePrefix) {
			return nil, fmt.Errorf("actor %q may not use the %q prefix", actor, rolePrefix)
		}
		inherits = append(inherits, []string{actor, roleSubject(role)})
	}
	if _, err := e.AddGroupingPolicies(inherits); err != nil {
		return nil, fmt.Errorf("failed to add role assignments: %w", err)
	}

	return &Authorizer{enforcer: e, enabled: enabled}, nil
}

// Enabled reports whether checks are enforced.
func (a *Authorizer) Enabled() bool { return a != nil && a.enabled }

// Authorize returns nil when the actor on ctx may perform action.
func (a *Authorizer) Authorize(ctx context.Context, action Action) error {
	if !a.Enabled() {
		return nil
	}
	actor := ctxutil.ActorFromContext(ctx)
	if actor == "" {
		return fmt.Errorf("%w: no actor for %s", ErrForbidden, action)
	}
	if strings.HasPrefix(actor, rolePrefix) {
		return fmt.Errorf("%w: %s is not an actor", ErrForbidden, actor)
	}
	ok, err := a.enforcer.Enforce(actor, string(action))
	if err != nil {
		return fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s may not %s", ErrForbidden, actor, action)
	}
	return nil
}
