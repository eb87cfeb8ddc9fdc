package llm

import "strings"

// ExtractJSON returns the span from the first '{' to the last '}', or "" when there is none.
// Models sometimes wrap JSON answers in prose or code fences even in JSON mode.
func ExtractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}
