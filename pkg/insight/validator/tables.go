package validator

import (
	"regexp"
	"strings"
)

const (
	identPattern = `(?:"[^"]+"|[A-Za-z_][A-Za-z0-9_$]*)`
	refPattern   = identPattern + `(?:\s*\.\s*` + identPattern + `)?`
)

var (
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	stringLitRe    = regexp.MustCompile(`'(?:[^']|'')*'`)
	fromFuncRe     = regexp.MustCompile(`(?i)\b(?:EXTRACT|SUBSTRING|TRIM|POSITION|OVERLAY)\s*\(`)
	distinctFromRe = regexp.MustCompile(`(?i)\bDISTINCT\s+FROM\b`)
	leadingWithRe  = regexp.MustCompile(`(?i)^\s*WITH\b`)
	cteNameRe      = regexp.MustCompile(`(?i)(?:\bWITH\s+(?:RECURSIVE\s+)?|,\s*)("[^"]+"|[A-Za-z_][A-Za-z0-9_$]*)\s*(?:\([^()]*\))?\s+AS\s*(?:NOT\s+MATERIALIZED\s*|MATERIALIZED\s*)?\(`)
	clauseRe       = regexp.MustCompile(`(?i)\b(FROM|JOIN)\b`)
	itemPrefixRe   = regexp.MustCompile(`(?i)^\s*(?:(?:LATERAL|ONLY)\s+)*`)
	itemRefRe      = regexp.MustCompile(`^` + refPattern)
	aliasRe        = regexp.MustCompile(`(?i)^\s+(?:AS\s+)?(` + identPattern + `)`)
	listSepRe      = regexp.MustCompile(`^\s*,`)
)

// Words that end a FROM item instead of aliasing it.
var clauseKeywords = map[string]bool{
	"where": true, "join": true, "inner": true, "left": true, "right": true, "full": true,
	"cross": true, "natural": true, "on": true, "using": true, "group": true, "order": true,
	"limit": true, "offset": true, "having": true, "window": true, "union": true,
	"intersect": true, "except": true, "fetch": true, "for": true, "tablesample": true,
	"returning": true, "with": true, "select": true,
}

// TableRef is a relation named in a FROM list or JOIN. Schema is empty when unqualified.
type TableRef struct {
	Schema string
	Name   string
}

func (r TableRef) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

// ExtractTables lists the distinct relation names found by ExtractTableRefs, without their schema.
func ExtractTables(sql string) []string {
	refs := ExtractTableRefs(sql)
	tables := make([]string, 0, len(refs))
	seen := make(map[string]bool)
	for _, ref := range refs {
		lower := strings.ToLower(ref.Name)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		tables = append(tables, ref.Name)
	}
	return tables
}

// ExtractTableRefs lists the distinct relations named after FROM (every comma separated item) or JOIN,
// clause by clause. It is a lexical scan: literals, comments, FROM inside EXTRACT-like calls,
// function calls and CTE names are ignored.
func ExtractTableRefs(sql string) []TableRef {
	cleaned := stripNoise(sql)
	ctes := cteNames(cleaned)

	seen := make(map[string]bool)
	refs := make([]TableRef, 0)
	for _, loc := range clauseRe.FindAllStringSubmatchIndex(cleaned, -1) {
		list := strings.EqualFold(cleaned[loc[2]:loc[3]], "FROM")
		for _, raw := range fromItems(cleaned, loc[1], list) {
			ref := qualify(raw)
			if ref.Schema == "" && ctes[strings.ToLower(ref.Name)] {
				continue
			}
			key := strings.ToLower(ref.String())
			if seen[key] {
				continue
			}
			seen[key] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// fromItems reads the relation names of the items starting at pos. When list is set it keeps
// following comma separated items. Subqueries and function calls yield nothing.
func fromItems(s string, pos int, list bool) []string {
	var names []string
	for {
		pos += len(itemPrefixRe.FindString(s[pos:]))
		rest := s[pos:]

		switch {
		case strings.HasPrefix(rest, "("):
			end := matchingParen(s, pos)
			if end < 0 {
				return names
			}
			pos = end + 1
		default:
			m := itemRefRe.FindString(rest)
			if m == "" {
				return names
			}
			pos += len(m)
			if isFunctionCall(s, pos) {
				open := pos + strings.Index(s[pos:], "(")
				end := matchingParen(s, open)
				if end < 0 {
					return names
				}
				pos = end + 1
			} else {
				names = append(names, m)
			}
		}

		pos = skipAlias(s, pos)
		if !list {
			return names
		}
		sep := listSepRe.FindString(s[pos:])
		if sep == "" {
			return names
		}
		pos += len(sep)
	}
}

// skipAlias steps over an optional alias and its column list.
func skipAlias(s string, pos int) int {
	m := aliasRe.FindStringSubmatch(s[pos:])
	if m == nil || clauseKeywords[strings.ToLower(m[1])] {
		return pos
	}
	pos += len(m[0])
	if isFunctionCall(s, pos) {
		open := pos + strings.Index(s[pos:], "(")
		if end := matchingParen(s, open); end >= 0 {
			pos = end + 1
		}
	}
	return pos
}

func stripNoise(sql string) string {
	s := blockCommentRe.ReplaceAllString(sql, " ")
	s = lineCommentRe.ReplaceAllString(s, " ")
	s = stringLitRe.ReplaceAllString(s, "''")
	s = distinctFromRe.ReplaceAllString(s, "DISTINCT_FROM")
	return blankFromFunctions(s)
}

// blankFromFunctions removes the argument lists of functions whose syntax uses FROM.
func blankFromFunctions(s string) string {
	for {
		loc := fromFuncRe.FindStringIndex(s)
		if loc == nil {
			return s
		}
		open := loc[1] - 1
		end := matchingParen(s, open)
		if end < 0 {
			return s[:loc[0]]
		}
		s = s[:loc[0]] + "0" + s[end+1:]
	}
}

func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func cteNames(s string) map[string]bool {
	names := make(map[string]bool)
	if !leadingWithRe.MatchString(s) {
		return names
	}
	for _, m := range cteNameRe.FindAllStringSubmatch(s, -1) {
		names[strings.ToLower(strings.Trim(m[1], `"`))] = true
	}
	return names
}

func isFunctionCall(s string, end int) bool {
	rest := strings.TrimLeft(s[end:], " \t\r\n")
	return strings.HasPrefix(rest, "(")
}

func qualify(ref string) TableRef {
	parts := strings.Split(ref, ".")
	name := strings.Trim(strings.TrimSpace(parts[len(parts)-1]), `"`)
	if len(parts) == 1 {
		return TableRef{Name: name}
	}
	return TableRef{Schema: strings.Trim(strings.TrimSpace(parts[0]), `"`), Name: name}
}
