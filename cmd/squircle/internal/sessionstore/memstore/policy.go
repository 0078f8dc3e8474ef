package memstore

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
)

// rbacModel grants a role (resource, action) pairs; "*" in a policy matches anything.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// defaultPolicies mirror the session store's built-in roles plus the idea resource.
var defaultPolicies = [][]string{
	{sessionstore.RoleAdmin, "*", auth.ActionAny},
	{sessionstore.RoleMember, auth.ResourceIdea, auth.ActionRead},
	{sessionstore.RoleMember, auth.ResourceIdea, auth.ActionCreate},
	{sessionstore.RoleMember, auth.ResourceSelf, auth.ActionAny},
	{sessionstore.RoleMember, auth.ResourceMember, auth.ActionSearch},
	{sessionstore.RoleMember, auth.ResourceOrganization, auth.ActionRead},
}

func newEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("parse rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	for _, p := range defaultPolicies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", p, err)
		}
	}
	return e, nil
}

// grantingRoles returns the roles among roleIDs that allow (resource, action).
func grantingRoles(e *casbin.Enforcer, roleIDs []string, resource, action string) ([]string, error) {
	var granting []string
	for _, role := range roleIDs {
		ok, err := e.Enforce(role, resource, action)
		if err != nil {
			return nil, fmt.Errorf("enforce %s on %s/%s: %w", role, resource, action, err)
		}
		if ok {
			granting = append(granting, role)
		}
	}
	return granting, nil
}
