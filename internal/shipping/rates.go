package shipping

import (
	"fmt"
	"strings"

	"bwitty-orders/internal/model"
)

// Tier is a delivery speed offered at checkout.
type Tier string

const (
	Standard  Tier = "standard"
	Express   Tier = "express"
	Overnight Tier = "overnight"
)

// Tiers lists every tier in display order.
var Tiers = []Tier{Standard, Express, Overnight}

var tierNames = map[Tier]string{
	Standard:  "Standard Delivery (5-7 days)",
	Express:   "Express Delivery (2-3 days)",
	Overnight: "Next Day Delivery",
}

// Name returns the customer-facing label for the tier.
func (t Tier) Name() string {
	return tierNames[t]
}

// Rate prices a shipment as max(Base, weightKg * PerKg), in naira.
type Rate struct {
	Base  int64 `json:"base"`
	PerKg int64 `json:"perKg"`
}

func (r Rate) price(weightGrams int64) int64 {
	// round partial naira up
	byWeight := (weightGrams*r.PerKg + 999) / 1000
	return max(r.Base, byWeight)
}

// RateTable is the full shipping price list. Prices are a pure function of
// destination, tier and weight.
type RateTable struct {
	DomesticCountry string           `json:"domesticCountry"`
	Domestic        map[Tier]Rate    `json:"domestic"`
	StateSurcharge  map[string]int64 `json:"stateSurcharge,omitempty"`

	// International rows are keyed by country name. Countries without a row
	// use DefaultInternational.
	International        map[string]map[Tier]Rate `json:"international"`
	DefaultInternational map[Tier]Rate            `json:"defaultInternational"`
}

// DefaultTable returns the built-in rates used when no table is configured.
func DefaultTable() *RateTable {
	return &RateTable{
		DomesticCountry: "Nigeria",
		Domestic: map[Tier]Rate{
			Standard:  {Base: 2500, PerKg: 500},
			Express:   {Base: 5000, PerKg: 800},
			Overnight: {Base: 8000, PerKg: 1200},
		},
		StateSurcharge: map[string]int64{},
		International: map[string]map[Tier]Rate{
			"Ghana": {
				Standard: {Base: 15000, PerKg: 3000},
				Express:  {Base: 25000, PerKg: 4500},
			},
			"Kenya": {
				Standard: {Base: 22000, PerKg: 4000},
				Express:  {Base: 35000, PerKg: 6000},
			},
			"South Africa": {
				Standard: {Base: 25000, PerKg: 4500},
				Express:  {Base: 40000, PerKg: 6500},
			},
			"United Kingdom": {
				Standard: {Base: 35000, PerKg: 6000},
				Express:  {Base: 55000, PerKg: 9000},
			},
			"United States": {
				Standard: {Base: 40000, PerKg: 7000},
				Express:  {Base: 60000, PerKg: 10000},
			},
		},
		DefaultInternational: map[Tier]Rate{
			Standard: {Base: 45000, PerKg: 8000},
			Express:  {Base: 70000, PerKg: 12000},
		},
	}
}

// Validate checks that the table can price every domestic tier and has a
// default international row.
func (t *RateTable) Validate() error {
	if strings.TrimSpace(t.DomesticCountry) == "" {
		return fmt.Errorf("domestic country is required")
	}
	for _, tier := range Tiers {
		if _, ok := t.Domestic[tier]; !ok {
			return fmt.Errorf("domestic rate for %s is missing", tier)
		}
	}
	if len(t.DefaultInternational) == 0 {
		return fmt.Errorf("default international rates are missing")
	}
	if err := validateRates("domestic", t.Domestic); err != nil {
		return err
	}
	if err := validateRates("default international", t.DefaultInternational); err != nil {
		return err
	}
	for country, rates := range t.International {
		if err := validateRates(country, rates); err != nil {
			return err
		}
	}
	for state, amount := range t.StateSurcharge {
		if amount < 0 {
			return fmt.Errorf("surcharge for %s is negative", state)
		}
	}
	return nil
}

func validateRates(zone string, rates map[Tier]Rate) error {
	for tier, r := range rates {
		if tier.Name() == "" {
			return fmt.Errorf("%s: unknown tier %q", zone, tier)
		}
		if r.Base < 0 || r.PerKg < 0 {
			return fmt.Errorf("%s: %s rate is negative", zone, tier)
		}
	}
	return nil
}

// IsDomestic reports whether country is the store's home country.
func (t *RateTable) IsDomestic(country string) bool {
	return strings.EqualFold(strings.TrimSpace(country), t.DomesticCountry)
}

func (t *RateTable) ratesFor(country string) map[Tier]Rate {
	if t.IsDomestic(country) {
		return t.Domestic
	}
	for name, rates := range t.International {
		if strings.EqualFold(name, strings.TrimSpace(country)) {
			return rates
		}
	}
	return t.DefaultInternational
}

// Quote prices one tier for the destination.
func (t *RateTable) Quote(country, state string, tier Tier, weightGrams int64) (int64, error) {
	if tier.Name() == "" {
		return 0, model.NewValidationError("shippingMethod", fmt.Sprintf("unknown shipping method %q", tier))
	}
	if weightGrams < 0 {
		return 0, model.NewValidationError("items", "weight cannot be negative")
	}

	rate, ok := t.ratesFor(country)[tier]
	if !ok {
		return 0, model.NewValidationError("shippingMethod", fmt.Sprintf("%s is not available for %s", tier.Name(), country))
	}

	price := rate.price(weightGrams)
	if t.IsDomestic(country) {
		price += t.surcharge(state)
	}
	return price, nil
}

func (t *RateTable) surcharge(state string) int64 {
	for name, amount := range t.StateSurcharge {
		if strings.EqualFold(name, strings.TrimSpace(state)) {
			return amount
		}
	}
	return 0
}

// Options returns every tier available for the destination with its price.
func (t *RateTable) Options(country, state string, weightGrams int64) []model.ShippingOption {
	options := make([]model.ShippingOption, 0, len(Tiers))
	for _, tier := range Tiers {
		price, err := t.Quote(country, state, tier, weightGrams)
		if err != nil {
			continue
		}
		options = append(options, model.ShippingOption{
			Tier:  string(tier),
			Name:  tier.Name(),
			Price: price,
		})
	}
	return options
}
