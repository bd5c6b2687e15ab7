package auth

import (
	"strings"
)

// Resource is an administrable part of the service.
type Resource string

const (
	ResourceCache  Resource = "cache"
	ResourceModels Resource = "models"
	ResourceStats  Resource = "stats"
)

// Action is an operation on a Resource.
type Action string

const (
	ActionRead    Action = "read"
	ActionClear   Action = "clear"
	ActionPreload Action = "preload"
	ActionUnload  Action = "unload"
	ActionReset   Action = "reset"
)

// Role grants permissions of the form "resource:action", where either side
// may be "*".
type Role struct {
	Permissions []string `yaml:"permissions"`
	Inherits    []string `yaml:"inherits"`
}

// Policy is a role-based access policy for admin operations.
type Policy struct {
	Roles map[string]Role `yaml:"roles"`
}

// DefaultPolicy grants viewer read access, operator routine maintenance,
// and admin everything.
func DefaultPolicy() Policy {
	return Policy{Roles: map[string]Role{
		"viewer": {Permissions: []string{"stats:read", "models:read", "cache:read"}},
		"operator": {
			Permissions: []string{"cache:clear", "models:preload", "stats:reset"},
			Inherits:    []string{"viewer"},
		},
		"admin": {Permissions: []string{"*:*"}},
	}}
}

// Authorize returns nil if any of id's roles, directly or through
// inheritance, grants action on resource.
func (p Policy) Authorize(id *Identity, resource Resource, action Action) error {
	if id == nil {
		return &AuthzError{Resource: resource, Action: action, Reason: "not authenticated"}
	}
	for _, name := range p.expand(id.Roles) {
		for _, perm := range p.Roles[name].Permissions {
			if permits(perm, resource, action) {
				return nil
			}
		}
	}
	return &AuthzError{
		Principal: id.Principal,
		Resource:  resource,
		Action:    action,
		Reason:    "no role grants this permission",
	}
}

// expand returns roles plus everything they inherit, each once.
func (p Policy) expand(roles []string) []string {
	seen := make(map[string]bool)
	queue := append([]string(nil), roles...)
	var out []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		queue = append(queue, p.Roles[name].Inherits...)
	}
	return out
}

func permits(perm string, resource Resource, action Action) bool {
	res, act, ok := strings.Cut(perm, ":")
	if !ok {
		return false
	}
	return (res == "*" || res == string(resource)) && (act == "*" || act == string(action))
}
