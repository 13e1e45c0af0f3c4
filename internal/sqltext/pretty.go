package sqltext

import "strings"

// Keywords uppercased during formatting. Function names like COUNT are left
// alone.
var formatKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AND": true, "OR": true,
	"NOT": true, "IN": true, "AS": true, "ON": true, "JOIN": true,
	"LEFT": true, "RIGHT": true, "INNER": true, "OUTER": true, "FULL": true,
	"CROSS": true, "GROUP": true, "BY": true, "ORDER": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "INSERT": true, "INTO": true, "VALUES": true,
	"UPDATE": true, "SET": true, "DELETE": true, "CREATE": true, "TABLE": true,
	"DROP": true, "ALTER": true, "DISTINCT": true, "UNION": true, "ALL": true,
	"EXISTS": true, "BETWEEN": true, "LIKE": true, "IS": true, "NULL": true,
	"ASC": true, "DESC": true, "CASE": true, "WHEN": true, "THEN": true,
	"ELSE": true, "END": true,
}

// Pretty normalizes keyword case and collapses erratic whitespace and line
// breaks to single spaces. It is purely cosmetic and idempotent: the output
// is a function of the token sequence alone, so clean single-line SQL passes
// through unchanged and formatting already-formatted SQL is a no-op.
func Pretty(query string) string {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return strings.TrimSpace(query)
	}

	var b strings.Builder
	for i, tok := range tokens {
		word := tok
		if !isQuoted(tok) {
			core := bareWord(tok)
			if formatKeywords[strings.ToUpper(core)] {
				word = strings.Replace(tok, core, strings.ToUpper(core), 1)
			}
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	return b.String()
}

// bareWord strips leading and trailing punctuation so keywords glued to
// parentheses or separators, like "(select" or "orders;", still match.
func bareWord(tok string) string {
	return strings.Trim(tok, "();,")
}

func isQuoted(tok string) bool {
	return len(tok) > 0 && (tok[0] == '\'' || tok[0] == '"' || tok[0] == '`')
}

// tokenize splits on whitespace while keeping quoted strings (single, double,
// or backtick) intact, including their surrounding token text.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	var quote byte

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			cur.WriteByte(c)
			if c == quote {
				// doubled quote inside a string is an escape
				if i+1 < len(s) && s[i+1] == quote {
					cur.WriteByte(s[i+1])
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
			cur.WriteByte(c)
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}
