package rbac

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const (
	ResourceLeave   = "leave"
	ResourceBalance = "balance"

	ActionSubmit    = "submit"
	ActionRead      = "read"
	ActionReadAll   = "read_all"
	ActionCancel    = "cancel"
	ActionReview    = "review"
	ActionProvision = "provision"
	ActionReconcile = "reconcile"
)

const modelText = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// roleInheritance: each role inherits everything granted to the next one.
var roleInheritance = [][2]Role{
	{RoleOwner, RoleAdmin},
	{RoleAdmin, RoleManager},
	{RoleManager, RoleEmployee},
}

type grant struct {
	role     Role
	resource string
	action   string
}

var grants = []grant{
	{RoleEmployee, ResourceLeave, ActionSubmit},
	{RoleEmployee, ResourceLeave, ActionRead},
	{RoleEmployee, ResourceLeave, ActionCancel},
	{RoleEmployee, ResourceBalance, ActionRead},

	{RoleManager, ResourceLeave, ActionReview},
	{RoleManager, ResourceLeave, ActionReadAll},
	{RoleManager, ResourceBalance, ActionReadAll},

	{RoleAdmin, ResourceBalance, ActionProvision},
	{RoleAdmin, ResourceBalance, ActionReconcile},
}

// NewEnforcer builds the static role policy. It never changes after
// construction, so one enforcer is shared by all requests.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}

	for _, pair := range roleInheritance {
		if _, err := e.AddGroupingPolicy(string(pair[0]), string(pair[1])); err != nil {
			return nil, err
		}
	}
	for _, g := range grants {
		if _, err := e.AddPolicy(string(g.role), g.resource, g.action); err != nil {
			return nil, err
		}
	}

	return e, nil
}
