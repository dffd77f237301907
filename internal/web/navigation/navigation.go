// Package navigation provides utilities for managing navigation state and breadcrumbs.
package navigation

// Section names of the main menu.
const (
	SectionDashboard = "dashboard"
	SectionBilling   = "billing"
	SectionAdmin     = "admin"
	SectionHolding   = "holding"
)

// MenuItem is one entry of the main menu. Entries gated by an inactive
// module render greyed out instead of disappearing.
type MenuItem struct {
	Title    string
	URL      string
	Section  string
	Active   bool
	Disabled bool
	// UpgradeHint is set when the entry is disabled because the
	// subscription does not cover it.
	UpgradeHint string
}

// Menu builds the main menu with the given active section. The canAccess
// callback decides per section whether the entry is enabled.
func Menu(activeSection string, canAccess func(section string) bool) []MenuItem {
	items := []MenuItem{
		{Title: "Dashboard", URL: "/dashboard", Section: SectionDashboard},
		{Title: "Billing", URL: "/billing/modules", Section: SectionBilling},
		{Title: "Users", URL: "/admin/users", Section: SectionAdmin},
		{Title: "Organizations", URL: "/holding", Section: SectionHolding},
	}

	for i := range items {
		items[i].Active = items[i].Section == activeSection

		if canAccess != nil && !canAccess(items[i].Section) {
			items[i].Disabled = true
			items[i].UpgradeHint = "Not available on the current plan"
		}
	}

	return items
}

// BreadcrumbItem represents a single breadcrumb link.
type BreadcrumbItem struct {
	Title  string
	URL    string
	Active bool
}

// Context represents the navigation context for a page.
type Context struct {
	ActiveSection string
	ActivePage    string
	Breadcrumbs   []BreadcrumbItem
	PageTitle     string
}

// NewContext creates a new navigation context.
func NewContext(pageTitle, activeSection, activePage string) *Context {
	return &Context{
		PageTitle:     pageTitle,
		ActiveSection: activeSection,
		ActivePage:    activePage,
		Breadcrumbs:   make([]BreadcrumbItem, 0),
	}
}

// AddBreadcrumb adds a breadcrumb item to the context.
func (c *Context) AddBreadcrumb(title, url string, active bool) *Context {
	c.Breadcrumbs = append(c.Breadcrumbs, BreadcrumbItem{
		Title:  title,
		URL:    url,
		Active: active,
	})

	return c
}

// IsActive checks if the given section and page match the current context.
func (c *Context) IsActive(section, page string) bool {
	return c.ActiveSection == section && c.ActivePage == page
}

// IsSectionActive checks if the given section is active.
func (c *Context) IsSectionActive(section string) bool {
	return c.ActiveSection == section
}
