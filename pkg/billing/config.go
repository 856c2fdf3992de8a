package billing

// Config holds the catalog settings of the billing subsystem.
type Config struct {
	PlansFile      string `env:"BILLING_PLANS_FILE"`       // YAML catalog, overrides the price ids below
	PremiumPriceID string `env:"BILLING_PREMIUM_PRICE_ID"` // provider price of the premium plan
	ProPriceID     string `env:"BILLING_PRO_PRICE_ID"`     // provider price of the pro plan
}

// CatalogFromConfig loads the catalog file when set, or builds the default
// catalog from the configured price ids.
func CatalogFromConfig(cfg Config) (*Catalog, error) {
	if cfg.PlansFile != "" {
		return LoadCatalogFile(cfg.PlansFile)
	}
	return NewCatalog(DefaultPlans(cfg.PremiumPriceID, cfg.ProPriceID)...)
}
