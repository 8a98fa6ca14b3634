// Package tablehint guesses which warehouse table a question is about.
//
// The label is diagnostic metadata for escalations only. It never feeds query
// generation or the safety gate.
package tablehint

import "strings"

// DefaultLabel is returned when no keyword matches.
const DefaultLabel = "order_header"

var (
	orderKeywords = []string{
		"order", "orders", "order_id", "order header", "status", "consignment",
		"order_type", "creation_date", "ship_by_date", "deliver_by_date",
	}
	skuKeywords = []string{
		"sku", "sku_id", "stroke", "description", "tdept", "color", "item", "product",
	}
	locationKeywords = []string{
		"location", "warehouse", "zone", "site", "pick_sequence", "modes", "site_code",
	}
	inventoryKeywords = []string{
		"inventory", "stock", "qty_on_hand", "qty_allocated", "availability", "balance",
	}
)

// rule is checked in slice order; the first primary match wins.
type rule struct {
	primary   []string
	secondary []string
	single    string
	joined    string
}

var rules = []rule{
	{primary: orderKeywords, secondary: skuKeywords, single: "order_header", joined: "order_header JOIN order_line"},
	{primary: skuKeywords, secondary: inventoryKeywords, single: "sku", joined: "sku JOIN inventory"},
	{primary: locationKeywords, secondary: inventoryKeywords, single: "location", joined: "location JOIN inventory"},
	{primary: inventoryKeywords, single: "inventory"},
}

// Detect returns a table or join label for question.
// Keywords match as substrings of the lower-cased text.
func Detect(question string) string {
	q := strings.ToLower(question)
	for _, r := range rules {
		if !containsAny(q, r.primary) {
			continue
		}
		if r.secondary != nil && containsAny(q, r.secondary) {
			return r.joined
		}
		return r.single
	}
	return DefaultLabel
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
