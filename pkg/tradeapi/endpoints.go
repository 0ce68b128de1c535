package tradeapi

// API endpoint paths, relative to the configured base URL.
const (
	// OAuth endpoints
	EndpointLogin  = "oauth/token"
	EndpointLogout = "oauth/logout"

	// Trader-scoped order endpoints (bearer token)
	EndpointGetOrders            = "api/orders/get"
	EndpointCreateOrder          = "api/orders/create"
	EndpointCancelOrder          = "api/orders/cancel"
	EndpointCancelAllOrders      = "api/orders/cancelall"
	EndpointGetTraderInstruments = "api/orders/traderinstruments"

	// Public/partner endpoints (apiID query parameter)
	EndpointGetMarketOrders       = "api/orders/getMarketOrders"
	EndpointGetPartnerInstruments = "api/orders/partnerinstruments"
	EndpointGetTradesHistory      = "api/orders/getTradesHistory"
)
