package campaign

import (
	"strings"

	"github.com/YuvaAi/promoforge/internal/platform"
)

// Platform-enforced age limits for ad targeting
const (
	minTargetAge = 13
	maxTargetAge = 65
)

// countryCodes maps user-facing country names to the ads platform's
// two-letter vocabulary. Immutable configuration data.
var countryCodes = map[string]string{
	"united states":        "US",
	"usa":                  "US",
	"canada":               "CA",
	"united kingdom":       "GB",
	"uk":                   "GB",
	"germany":              "DE",
	"france":               "FR",
	"spain":                "ES",
	"italy":                "IT",
	"netherlands":          "NL",
	"india":                "IN",
	"pakistan":             "PK",
	"bangladesh":           "BD",
	"australia":            "AU",
	"japan":                "JP",
	"brazil":               "BR",
	"mexico":               "MX",
	"south africa":         "ZA",
	"nigeria":              "NG",
	"egypt":                "EG",
	"saudi arabia":         "SA",
	"united arab emirates": "AE",
	"uae":                  "AE",
	"singapore":            "SG",
	"indonesia":            "ID",
	"turkey":               "TR",
}

// countryCurrency maps country codes to their billing currency
var countryCurrency = map[string]string{
	"US": "USD", "CA": "CAD", "GB": "GBP", "DE": "EUR", "FR": "EUR",
	"ES": "EUR", "IT": "EUR", "NL": "EUR", "IN": "INR", "PK": "PKR",
	"BD": "BDT", "AU": "AUD", "JP": "JPY", "BR": "BRL", "MX": "MXN",
	"ZA": "ZAR", "NG": "NGN", "EG": "EGP", "SA": "SAR", "AE": "AED",
	"SG": "SGD", "ID": "IDR", "TR": "TRY",
}

// allowedOptimizationGoals is the fixed allow-list for ad set
// optimization goals
var allowedOptimizationGoals = map[string]bool{
	"REACH":              true,
	"IMPRESSIONS":        true,
	"LINK_CLICKS":        true,
	"POST_ENGAGEMENT":    true,
	"LANDING_PAGE_VIEWS": true,
}

// allowedBillingEvents maps each optimization goal to its valid billing
// events
var allowedBillingEvents = map[string]map[string]bool{
	"REACH":              {"IMPRESSIONS": true},
	"IMPRESSIONS":        {"IMPRESSIONS": true},
	"LINK_CLICKS":        {"IMPRESSIONS": true, "LINK_CLICKS": true},
	"POST_ENGAGEMENT":    {"IMPRESSIONS": true, "POST_ENGAGEMENT": true},
	"LANDING_PAGE_VIEWS": {"IMPRESSIONS": true},
}

// ResolveCountry maps a country name (or an already-valid code) to the
// platform country code. Unknown names fail with InvalidTargeting.
func ResolveCountry(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) == 2 {
		upper := strings.ToUpper(trimmed)
		if _, ok := countryCurrency[upper]; ok {
			return upper, nil
		}
	}
	if code, ok := countryCodes[strings.ToLower(trimmed)]; ok {
		return code, nil
	}
	return "", platform.NewError(platform.FacebookAds, platform.KindInvalidTargeting,
		"unknown country: %q", name)
}

// CurrencyFor returns the billing currency for a country code, or USD
// when the code has no mapping
func CurrencyFor(code string) string {
	if cur, ok := countryCurrency[strings.ToUpper(code)]; ok {
		return cur
	}
	return "USD"
}

// resolveCountries maps all country names, failing fast on the first
// unknown one
func resolveCountries(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, platform.NewError(platform.FacebookAds, platform.KindInvalidTargeting,
			"targeting requires at least one country")
	}
	codes := make([]string, 0, len(names))
	for _, n := range names {
		code, err := ResolveCountry(n)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// validateAgeRange enforces the platform age window before any network
// call
func validateAgeRange(min, max int) error {
	if min < minTargetAge || max > maxTargetAge || min > max {
		return platform.NewError(platform.FacebookAds, platform.KindInvalidTargeting,
			"age range %d-%d outside allowed window %d-%d", min, max, minTargetAge, maxTargetAge)
	}
	return nil
}

// validateOptimization checks goal and billing event against the fixed
// allow-lists
func validateOptimization(goal, billingEvent string) error {
	if !allowedOptimizationGoals[goal] {
		return platform.NewError(platform.FacebookAds, platform.KindInvalidConfiguration,
			"optimization goal %q is not allowed", goal)
	}
	events, ok := allowedBillingEvents[goal]
	if !ok || !events[billingEvent] {
		return platform.NewError(platform.FacebookAds, platform.KindInvalidConfiguration,
			"billing event %q is not valid for optimization goal %q", billingEvent, goal)
	}
	return nil
}
