// Package settings resolves named configuration keys to effective values by
// layering a persisted override store over the process environment over a
// caller-supplied fallback. The catalog of known keys is fixed at compile
// time; only the resolved values change at runtime.
package settings

// ValueType hints at how a caller should parse the resolved string. The
// layering itself never branches on type.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeSecret  ValueType = "secret"
)

// Definition is one catalog entry. The catalog is read-only for the process
// lifetime.
type Definition struct {
	Key             string    `json:"key"`
	EnvironmentName string    `json:"environment_name"`
	Label           string    `json:"label"`
	Group           string    `json:"group"`
	Description     string    `json:"description"`
	Type            ValueType `json:"type"`
	Sensitive       bool      `json:"sensitive"`
	Required        bool      `json:"required"`
}

// Setting groups
const (
	GroupApplication  = "application"
	GroupEmail        = "email"
	GroupPayments     = "payments"
	GroupIntegrations = "integrations"
)

var catalog = []Definition{
	{
		Key:             "app_port",
		EnvironmentName: "APP_PORT",
		Label:           "Application port",
		Group:           GroupApplication,
		Description:     "TCP port the platform API listens on.",
		Type:            TypeNumber,
		Required:        true,
	},
	{
		Key:             "app_url",
		EnvironmentName: "APP_URL",
		Label:           "Application URL",
		Group:           GroupApplication,
		Description:     "Public base URL used in emails and embed widgets.",
		Type:            TypeString,
		Required:        true,
	},
	{
		Key:             "app_secret_key",
		EnvironmentName: "APP_SECRET_KEY",
		Label:           "Application secret key",
		Group:           GroupApplication,
		Description:     "Signs session tokens and webhook payloads.",
		Type:            TypeSecret,
		Sensitive:       true,
		Required:        true,
	},
	{
		Key:             "database_url",
		EnvironmentName: "DATABASE_URL",
		Label:           "Database connection string",
		Group:           GroupApplication,
		Description:     "Connection string for the platform datastore.",
		Type:            TypeSecret,
		Sensitive:       true,
		Required:        true,
	},
	{
		Key:             "smtp_host",
		EnvironmentName: "SMTP_HOST",
		Label:           "SMTP host",
		Group:           GroupEmail,
		Description:     "Outbound mail server host.",
		Type:            TypeString,
	},
	{
		Key:             "smtp_port",
		EnvironmentName: "SMTP_PORT",
		Label:           "SMTP port",
		Group:           GroupEmail,
		Description:     "Outbound mail server port.",
		Type:            TypeNumber,
	},
	{
		Key:             "smtp_username",
		EnvironmentName: "SMTP_USERNAME",
		Label:           "SMTP username",
		Group:           GroupEmail,
		Description:     "Credential for the outbound mail server.",
		Type:            TypeString,
	},
	{
		Key:             "smtp_password",
		EnvironmentName: "SMTP_PASSWORD",
		Label:           "SMTP password",
		Group:           GroupEmail,
		Description:     "Credential for the outbound mail server.",
		Type:            TypeSecret,
		Sensitive:       true,
	},
	{
		Key:             "mail_from_address",
		EnvironmentName: "MAIL_FROM_ADDRESS",
		Label:           "Mail from address",
		Group:           GroupEmail,
		Description:     "Sender address on ticket confirmations and invites.",
		Type:            TypeString,
	},
	{
		Key:             "stripe_publishable_key",
		EnvironmentName: "STRIPE_PUBLISHABLE_KEY",
		Label:           "Stripe publishable key",
		Group:           GroupPayments,
		Description:     "Client-side key for the checkout widget.",
		Type:            TypeString,
	},
	{
		Key:             "stripe_secret_key",
		EnvironmentName: "STRIPE_SECRET_KEY",
		Label:           "Stripe secret key",
		Group:           GroupPayments,
		Description:     "Server-side key for charges and refunds.",
		Type:            TypeSecret,
		Sensitive:       true,
	},
	{
		Key:             "stripe_webhook_secret",
		EnvironmentName: "STRIPE_WEBHOOK_SECRET",
		Label:           "Stripe webhook secret",
		Group:           GroupPayments,
		Description:     "Verifies incoming payment webhooks.",
		Type:            TypeSecret,
		Sensitive:       true,
	},
	{
		Key:             "webhook_url",
		EnvironmentName: "WEBHOOK_URL",
		Label:           "Outgoing webhook URL",
		Group:           GroupIntegrations,
		Description:     "Receives order and check-in notifications, if set.",
		Type:            TypeString,
	},
	{
		Key:             "support_email",
		EnvironmentName: "SUPPORT_EMAIL",
		Label:           "Support email",
		Group:           GroupIntegrations,
		Description:     "Shown to attendees on error pages and receipts.",
		Type:            TypeString,
	},
}

// restartKeys marks settings whose new value only takes effect after a
// process restart.
var restartKeys = map[string]struct{}{
	"app_port":       {},
	"app_secret_key": {},
	"database_url":   {},
}

// Definitions returns the full catalog in declaration order.
func Definitions() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a catalog entry by key.
func Lookup(key string) (Definition, bool) {
	for _, d := range catalog {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// RequiresRestart reports whether a change to key only applies after restart.
func RequiresRestart(key string) bool {
	_, ok := restartKeys[key]
	return ok
}
