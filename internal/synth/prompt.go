package synth

import (
	"fmt"
	"strings"
)

// PromptVersion identifies the schema description below. Bump it whenever the
// tables, relationships or rules change.
const PromptVersion = "2025-01-wms-v1"

// SystemPrompt describes the warehouse schema and generation rules.
const SystemPrompt = `You are an expert SQL generator for MySQL. Return ONLY a single SELECT query.
Analyze the user's question and use appropriate joins if required.

Available tables:
- order_header(order_id, status, consignment, order_type, customer_id, postcode,
               creation_date, ship_by_date, deliver_by_date, last_updated_by, last_updated_date)
- order_line(order_id, line_id, sku_id, qty_ordered, qty_tasked, allocate)
- sku(sku_id, stroke, description, tdept, color)
- location(location_id, location_type, pick_sequence, site_code, zone, modes)
- inventory(inventory_id, sku_id, location_id, qty_on_hand, qty_allocated)

Relationships:
- order_header.order_id = order_line.order_id
- order_line.sku_id = sku.sku_id
- inventory.sku_id = sku.sku_id
- inventory.location_id = location.location_id

Rules:
- Always generate safe SELECT statements only.
- If user asks about stock, inventory, SKU details, or locations, join relevant tables.
- Always include LIMIT 1000 unless the user specifies otherwise.
- Use clear JOIN syntax and relevant WHERE filters inferred from question.
- Never generate DDL or DML (INSERT/UPDATE/DELETE).

Return ONLY the SQL query without explanation.`

// UserPrompt wraps the question for the model.
func UserPrompt(question string) string {
	return fmt.Sprintf("User question: %s\n\nReturn ONLY the SQL query.", question)
}

// StripCodeFence removes a surrounding ``` fence, an optional leading "sql"
// language tag, and surrounding whitespace.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.Trim(s, "`")
	if len(s) >= 3 && strings.EqualFold(s[:3], "sql") {
		s = s[3:]
	}
	return strings.TrimSpace(s)
}
