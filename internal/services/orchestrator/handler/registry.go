package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// GatewayConfig holds the endpoints of the external systems actions run against.
// An empty URL leaves that system simulated.
type GatewayConfig struct {
	PricingURL   string        `env:"OPSBOT_PRICING_URL"`
	MessagingURL string        `env:"OPSBOT_MESSAGING_URL"`
	InventoryURL string        `env:"OPSBOT_INVENTORY_URL"`
	FinanceURL   string        `env:"OPSBOT_FINANCE_URL"`
	Token        string        `env:"OPSBOT_GATEWAY_TOKEN"`
	MaxTries     uint          `env:"OPSBOT_GATEWAY_MAX_TRIES" envDefault:"3"`
	Timeout      time.Duration `env:"OPSBOT_GATEWAY_TIMEOUT" envDefault:"15s"`
}

var gatewayTypes = map[string][]string{
	"pricing":   {"suggest_price", "update_price", "block_dates"},
	"messaging": {"post_review_response", "send_guest_message", "publish_social_post", "draft_review_response", "generate_social_post", "create_ad_campaign"},
	"inventory": {"check_inventory", "order_supplies", "assign_task", "schedule_cleaning", "check_maintenance", "check_availability", "sync_calendars"},
	"finance":   {"generate_report", "analyze_data", "analyze_reviews", "analyze_expenses", "analyze_revenue", "forecast_revenue", "create_invoice", "coordinate_modules"},
}

// DefaultRegistry wires every catalog action type to the gateway for its
// external system.
func DefaultRegistry(cfg GatewayConfig, logger zerolog.Logger) *Registry {
	client := &http.Client{Timeout: cfg.Timeout}
	opts := []GatewayOption{
		WithToken(cfg.Token),
		WithHTTPClient(client),
		WithRetry(cfg.MaxTries, 0, 0),
		WithGatewayLogger(logger),
	}
	urls := map[string]string{
		"pricing":   cfg.PricingURL,
		"messaging": cfg.MessagingURL,
		"inventory": cfg.InventoryURL,
		"finance":   cfg.FinanceURL,
	}

	var entries []Entry
	for name, types := range gatewayTypes {
		gateway := NewGateway(name, urls[name], opts...)
		for _, actionType := range types {
			entries = append(entries, Entry{Type: actionType, Handler: gateway})
		}
	}
	return NewRegistry(entries...)
}
