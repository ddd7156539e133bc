package nav

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func names(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestFilter(t *testing.T) {
	Convey("Given the dashboard navigation", t, func() {
		Convey("An admin sees everything", func() {
			So(names(Filter(Items, []string{RoleAdmin})), ShouldResemble,
				[]string{"Dashboard", "Viewer", "Channels", "Sessions", "Redis Data"})
		})

		Convey("QA sees sessions and redis but not channels", func() {
			So(names(Filter(Items, []string{RoleQA})), ShouldResemble,
				[]string{"Dashboard", "Viewer", "Sessions", "Redis Data"})
		})

		Convey("A developer sees channels and sessions", func() {
			So(names(Filter(Items, []string{RoleDeveloper})), ShouldResemble,
				[]string{"Dashboard", "Viewer", "Channels", "Sessions"})
		})

		Convey("A viewer or an operator without roles sees only open pages", func() {
			So(names(Filter(Items, []string{RoleViewer})), ShouldResemble, []string{"Dashboard", "Viewer"})
			So(names(Filter(Items, nil)), ShouldResemble, []string{"Dashboard", "Viewer"})
		})

		Convey("Quick actions follow the same rule", func() {
			So(len(FilterActions(QuickActions, []string{RoleViewer})), ShouldEqual, 1)
			So(len(FilterActions(QuickActions, []string{RoleQA, RoleViewer})), ShouldEqual, 2)
		})
	})
}

func TestRolesFor(t *testing.T) {
	Convey("Given page paths", t, func() {
		Convey("Session detail pages inherit the sessions roles", func() {
			roles, ok := RolesFor("/dashboard/sessions/42")
			So(ok, ShouldBeTrue)
			So(roles, ShouldResemble, SessionRoles)
		})

		Convey("The home page is open", func() {
			roles, ok := RolesFor("/dashboard")
			So(ok, ShouldBeTrue)
			So(roles, ShouldBeNil)
		})

		Convey("Unknown pages are reported", func() {
			_, ok := RolesFor("/elsewhere")
			So(ok, ShouldBeFalse)
		})
	})
}
