// Package nav is the static route table of the dashboard and its role filter.
package nav

import (
	"strings"

	"github.com/samber/lo"
)

const (
	RoleAdmin     = "admin"
	RoleQA        = "qa"
	RoleDeveloper = "developer"
	RoleViewer    = "viewer"
)

// Item is a navigation entry. Nil Roles means every signed-in operator.
type Item struct {
	Name  string   `json:"name"`
	Href  string   `json:"href"`
	Roles []string `json:"roles"`
}

type QuickAction struct {
	Item
	Description string `json:"description"`
	Color       string `json:"color"`
}

var (
	ChannelRoles = []string{RoleAdmin, RoleDeveloper}
	SessionRoles = []string{RoleAdmin, RoleQA, RoleDeveloper}
	RedisRoles   = []string{RoleAdmin, RoleQA}
	AdminRoles   = []string{RoleAdmin}
)

var Items = []Item{
	{Name: "Dashboard", Href: "/dashboard"},
	{Name: "Viewer", Href: "/dashboard/viewer"},
	{Name: "Channels", Href: "/dashboard/channels", Roles: ChannelRoles},
	{Name: "Sessions", Href: "/dashboard/sessions", Roles: SessionRoles},
	{Name: "Redis Data", Href: "/dashboard/redis", Roles: RedisRoles},
}

var QuickActions = []QuickAction{
	{Item: Item{Name: "Viewer", Href: "/dashboard/viewer"}, Description: "Watch live streams", Color: "from-purple-400 to-purple-600"},
	{Item: Item{Name: "Sessions", Href: "/dashboard/sessions", Roles: SessionRoles}, Description: "View session details", Color: "from-green-400 to-green-600"},
}

// Allowed reports whether an operator holding roles may see item.
func Allowed(item Item, roles []string) bool {
	return item.Roles == nil || lo.Some(item.Roles, roles)
}

func Filter(items []Item, roles []string) []Item {
	return lo.Filter(items, func(it Item, _ int) bool { return Allowed(it, roles) })
}

func FilterActions(actions []QuickAction, roles []string) []QuickAction {
	return lo.Filter(actions, func(a QuickAction, _ int) bool { return Allowed(a.Item, roles) })
}

// RolesFor returns the roles guarding the page at path, matching the longest
// table prefix. ok is false for paths outside the table.
func RolesFor(path string) (roles []string, ok bool) {
	best := -1
	for _, it := range Items {
		if path != it.Href && !strings.HasPrefix(path, it.Href+"/") {
			continue
		}
		if len(it.Href) > best {
			best = len(it.Href)
			roles = it.Roles
		}
	}
	return roles, best >= 0
}
