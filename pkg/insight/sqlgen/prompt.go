package sqlgen

import (
	"fmt"
	"strings"

	"bizinsight-be/pkg/insight/classifier"
	"bizinsight-be/pkg/insight/schema"
)

func BuildPrompt(message string, tables []schema.TableSchema, analysis *classifier.PromptAnalysisResult) string {
	var prompt strings.Builder

	prompt.WriteString("You are an expert PostgreSQL database analyst. Generate ACCURATE and EFFICIENT SQL queries based on user requests.\n\n")

	prompt.WriteString("## Database Schema:\n")
	prompt.WriteString(DescribeSchema(tables))
	prompt.WriteString("\n")

	prompt.WriteString("## CRITICAL RULES:\n")
	prompt.WriteString("1. **Table & Column Names**: Use EXACT names from schema (case-sensitive). Use snake_case format.\n")
	prompt.WriteString("2. **JOINs**: Always specify JOIN conditions using foreign keys from schema relationships\n")
	prompt.WriteString("3. **Date Filtering**:\n")
	prompt.WriteString("   - For \"last month\": WHERE date >= DATE_TRUNC('month', CURRENT_DATE - INTERVAL '1 month') AND date < DATE_TRUNC('month', CURRENT_DATE)\n")
	prompt.WriteString("   - For \"this month\": WHERE date >= DATE_TRUNC('month', CURRENT_DATE)\n")
	prompt.WriteString("   - For \"last week\": WHERE date >= DATE_TRUNC('week', CURRENT_DATE - INTERVAL '1 week')\n")
	prompt.WriteString("   - Use created_at or updated_at column based on context\n")
	prompt.WriteString("4. **Aggregations**:\n")
	prompt.WriteString("   - Use SUM(), COUNT(), AVG() appropriately\n")
	prompt.WriteString("   - Always GROUP BY when using aggregations\n")
	prompt.WriteString("   - Use ROUND() for decimal values: ROUND(AVG(price)::numeric, 2)\n")
	prompt.WriteString("5. **Performance**:\n")
	prompt.WriteString("   - Add LIMIT clause (default 100, max 1000) unless user specifies\n")
	prompt.WriteString("   - Use indexes (id, created_at, foreign keys)\n")
	prompt.WriteString("   - Avoid SELECT * when specific columns suffice\n")
	prompt.WriteString("6. **Data Types**:\n")
	prompt.WriteString("   - Cast appropriately: column_name::numeric, column_name::text\n")
	prompt.WriteString("   - Handle NULLs: COALESCE(column, 0)\n")
	prompt.WriteString("7. **Sorting**: Always add ORDER BY for consistent results (e.g., ORDER BY created_at DESC)\n")
	prompt.WriteString("8. **Read only**: Only SELECT (optionally WITH ... SELECT). Never modify data or schema.\n\n")

	prompt.WriteString("## Example Patterns:\n\n")
	prompt.WriteString(examplePatterns)
	prompt.WriteString("\n")

	prompt.WriteString("## Response Format (JSON):\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"sqlQuery\": \"SELECT ...\",\n")
	prompt.WriteString("  \"explanation\": \"This query retrieves...\",\n")
	prompt.WriteString("  \"confidence\": 0.95,\n")
	prompt.WriteString("  \"tables\": [\"orders\", \"products\"],\n")
	prompt.WriteString("  \"columns\": [\"total_amount\", \"created_at\"]\n")
	prompt.WriteString("}\n\n")

	intent := classifier.IntentGeneral
	entities := "none"
	confidence := 0.0
	if analysis != nil {
		intent = analysis.Intent
		if len(analysis.Entities) > 0 {
			entities = strings.Join(analysis.Entities, ", ")
		}
		confidence = analysis.Confidence
	}

	prompt.WriteString("## User Context:\n")
	prompt.WriteString(fmt.Sprintf("- Intent: %s\n", intent))
	prompt.WriteString(fmt.Sprintf("- Entities mentioned: %s\n", entities))
	prompt.WriteString(fmt.Sprintf("- Confidence: %g\n\n", confidence))

	prompt.WriteString(fmt.Sprintf("Generate the MOST ACCURATE SQL query for: %q", message))

	return prompt.String()
}

const examplePatterns = `**Revenue by Month:**
SELECT
  DATE_TRUNC('month', o.created_at) as month,
  ROUND(SUM(o.total_amount)::numeric, 2) as total_revenue,
  COUNT(o.id) as order_count
FROM orders o
WHERE o.created_at >= DATE_TRUNC('month', CURRENT_DATE - INTERVAL '6 month')
GROUP BY DATE_TRUNC('month', o.created_at)
ORDER BY month DESC
LIMIT 12

**Top Products:**
SELECT
  p.name,
  p.category,
  SUM(oi.quantity) as total_sold,
  ROUND(SUM(oi.total_price)::numeric, 2) as revenue
FROM products p
JOIN order_items oi ON oi.product_id = p.id
GROUP BY p.id, p.name, p.category
ORDER BY total_sold DESC
LIMIT 10

**Customer Insights:**
SELECT
  c.id,
  c.first_name || ' ' || c.last_name as customer_name,
  c.email,
  COUNT(o.id) as order_count,
  ROUND(SUM(o.total_amount)::numeric, 2) as total_spent
FROM customers c
LEFT JOIN orders o ON o.customer_id = c.id
GROUP BY c.id, c.first_name, c.last_name, c.email
HAVING COUNT(o.id) > 0
ORDER BY total_spent DESC
LIMIT 20
`
