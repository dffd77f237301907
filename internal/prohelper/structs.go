package prohelper

// PermissionsData is the resolved authorization snapshot of one user in one
// organization context, as computed by the platform.
type PermissionsData struct {
	UserID          uint64   `json:"user_id"`
	OrganizationID  uint64   `json:"organization_id"`
	PermissionsFlat []string `json:"permissions_flat"`
	Roles           []string `json:"roles"`
	Interfaces      []string `json:"interfaces"`
	ActiveModules   []string `json:"active_modules"`
}

// CheckRequest is the body of a live permission check.
type CheckRequest struct {
	Permission string         `json:"permission"`
	Context    map[string]any `json:"context,omitempty"`
	Interface  string         `json:"interface,omitempty"`
}

// CheckResult is the outcome of a live permission check.
type CheckResult struct {
	HasPermission bool   `json:"has_permission"`
	Reason        string `json:"reason,omitempty"`
}

// LimitStatus classifies a single usage-vs-limit item.
type LimitStatus string

const (
	// LimitOK means usage is comfortably below the limit.
	LimitOK LimitStatus = "ok"
	// LimitApproaching means usage is getting close to the limit.
	LimitApproaching LimitStatus = "approaching"
	// LimitWarning means usage crossed the warning threshold.
	LimitWarning LimitStatus = "warning"
	// LimitExceeded means the limit is reached or exceeded.
	LimitExceeded LimitStatus = "exceeded"
)

// LimitItem is one resource's usage against its plan limit.
// The server computes remaining and percentage, the client never recomputes them.
type LimitItem struct {
	Used           int         `json:"used"`
	Limit          int         `json:"limit"`
	Remaining      int         `json:"remaining"`
	PercentageUsed float64     `json:"percentage_used"`
	IsUnlimited    bool        `json:"is_unlimited"`
	Status         LimitStatus `json:"status"`
}

// DisplayPercent is the usage percentage for rendering. Unlimited items are
// capped at 100, their raw percentage carries no meaning against a missing
// limit.
func (i LimitItem) DisplayPercent() float64 {
	if i.IsUnlimited && i.PercentageUsed > 100 {
		return 100
	}

	return i.PercentageUsed
}

// WarningLevel grades a subscription warning.
type WarningLevel string

const (
	// WarningLevelWarning is an advisory warning.
	WarningLevelWarning WarningLevel = "warning"
	// WarningLevelCritical requires action, usually an upgrade.
	WarningLevelCritical WarningLevel = "critical"
)

// Warning is a single subscription warning emitted by the server.
type Warning struct {
	Type    string       `json:"type"`
	Level   WarningLevel `json:"level"`
	Message string       `json:"message"`
}

// SubscriptionLimits is the usage-vs-limit report of one organization.
type SubscriptionLimits struct {
	HasSubscription bool                 `json:"has_subscription"`
	Limits          map[string]LimitItem `json:"limits"`
	Warnings        []Warning            `json:"warnings"`
	UpgradeRequired bool                 `json:"upgrade_required"`
}

// ModuleStatus is the billing state of a module for a tenant.
type ModuleStatus string

const (
	// ModuleActive is a paid running module.
	ModuleActive ModuleStatus = "active"
	// ModuleTrial is a module in its trial period.
	ModuleTrial ModuleStatus = "trial"
	// ModuleExpired is a module whose paid period ran out.
	ModuleExpired ModuleStatus = "expired"
	// ModuleInactive is a module that was never activated or was turned off.
	ModuleInactive ModuleStatus = "inactive"
)

// Module is a billable feature unit from the catalog.
type Module struct {
	ID            uint64       `json:"id"`
	Slug          string       `json:"slug"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Category      string       `json:"category"`
	Price         float64      `json:"price"`
	DurationDays  int          `json:"duration_days"`
	Status        ModuleStatus `json:"status"`
	IsActive      bool         `json:"is_active"`
	ParentID      uint64       `json:"parent_id,omitempty"`
	PaymentMethod string       `json:"payment_method,omitempty"`
}

// ActivatedModule is a module activation record of the tenant.
type ActivatedModule struct {
	ID            uint64       `json:"id"`
	ModuleID      uint64       `json:"module_id"`
	Slug          string       `json:"slug"`
	Status        ModuleStatus `json:"status"`
	ExpiresAt     string       `json:"expires_at,omitempty"`
	PaymentMethod string       `json:"payment_method,omitempty"`
}

// BillingInfo is the tenant's billing summary.
type BillingInfo struct {
	Balance       float64 `json:"balance"`
	Currency      string  `json:"currency"`
	MonthlyCost   float64 `json:"monthly_cost"`
	NextChargeAt  string  `json:"next_charge_at,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
}

// Balance is the organization account balance.
type Balance struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Transaction is one balance movement.
type Transaction struct {
	ID          uint64  `json:"id"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"created_at"`
}

// User is an organization member as served by the platform.
type User struct {
	ID        uint64   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
	IsActive  bool     `json:"is_active"`
}

// Organization is one tenant of a holding.
type Organization struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	INN      string `json:"inn,omitempty"`
	IsActive bool   `json:"is_active"`
}

// LoginResult is the outcome of a successful authentication.
type LoginResult struct {
	Token          string `json:"token"`
	User           User   `json:"user"`
	OrganizationID uint64 `json:"organization_id"`
}
