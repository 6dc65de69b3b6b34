package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Health
	RouteRoot = "/"

	// Link token issuance. The scoped variants mirror the legacy frontend
	// paths and pin the requested product.
	RouteLinkToken        = "/mesh/link-token"
	RouteLinkTokenConnect = "/mesh/link-token/connect"
	RouteLinkTokenPay     = "/mesh/link-token/pay"

	// Connected callback: the widget host reports captured credentials
	// back to the session the link token was bound to.
	RouteLinkTokenCallback = "/mesh/link-token/callback"

	// Authenticated proxy routes
	RoutePay       = "/mesh/pay"
	RoutePortfolio = "/mesh/portfolio"
)
