package services

import "strings"

// DefaultNoiseTokens are trade-type qualifiers that the price feed appends to
// market names ("Raipur APMC", "Durg Veg").
var DefaultNoiseTokens = []string{"APMC", "Veg"}

// MarketNormalizer turns a market name as reported by the price feed into the
// cache key shared by the location and route caches.
type MarketNormalizer struct {
	noise map[string]struct{}
}

// NewMarketNormalizer builds a normalizer that drops the given whole-word tokens.
// Matching is case-sensitive, like the feed itself.
func NewMarketNormalizer(noiseTokens []string) *MarketNormalizer {
	noise := make(map[string]struct{}, len(noiseTokens))
	for _, t := range noiseTokens {
		if t = strings.TrimSpace(t); t != "" {
			noise[t] = struct{}{}
		}
	}
	return &MarketNormalizer{noise: noise}
}

// Normalize cuts everything from the first '(' on, drops noise tokens and
// collapses whitespace. Case is preserved and Normalize(Normalize(x)) == Normalize(x).
func (n *MarketNormalizer) Normalize(name string) string {
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}

	fields := strings.Fields(name)
	kept := fields[:0]
	for _, f := range fields {
		if _, drop := n.noise[f]; !drop {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

var defaultNormalizer = NewMarketNormalizer(DefaultNoiseTokens)

// NormalizeMarketName normalizes with DefaultNoiseTokens
func NormalizeMarketName(name string) string {
	return defaultNormalizer.Normalize(name)
}
