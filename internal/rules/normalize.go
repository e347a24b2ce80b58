package rules

import "unicode"

// keywordRewrites maps rule keywords that have a different spelling in the
// expression language.
var keywordRewrites = map[string]string{
	"True":  "true",
	"False": "false",
	"None":  "nil",
	"is":    "==",
}

// operatorWords are the keywords after which an opening parenthesis starts
// a group rather than a call.
var operatorWords = map[string]bool{"in": true, "and": true, "or": true, "not": true}

// opener is an unclosed bracket seen by normalize.
type opener struct {
	pos   int  // index of the bracket in the output
	group bool // a parenthesis that is not a call
	comma int  // index of the last top-level comma, -1 if none
}

// normalize rewrites the keyword spellings rules are written with into the
// expression language's own. String literals and attribute names are copied
// untouched; "is not" becomes "!=" and tuples such as ('a', 'b') or ('a',)
// become lists.
func normalize(src string) string {
	runes := []rune(src)
	out := make([]rune, 0, len(runes))
	prevSignificant := rune(0)
	prevWord := ""
	var stack []opener

	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case r == '\'' || r == '"' || r == '`':
			end := skipString(runes, i)
			out = append(out, runes[i:end]...)
			i = end
			prevSignificant = r

		case isIdentStart(r):
			end := i
			for end < len(runes) && isIdentPart(runes[end]) {
				end++
			}
			word := string(runes[i:end])
			i = end

			if prevSignificant == '.' {
				out = append(out, []rune(word)...)
				prevSignificant, prevWord = 'a', word
				continue
			}

			if word == "is" {
				if next, after := nextWord(runes, end); next == "not" {
					out = append(out, []rune("!=")...)
					i = after
					prevSignificant, prevWord = '=', ""
					continue
				}
			}

			if rewrite, ok := keywordRewrites[word]; ok {
				out = append(out, []rune(rewrite)...)
			} else {
				out = append(out, []rune(word)...)
			}
			prevSignificant, prevWord = 'a', word

		case r == '(' || r == '[' || r == '{':
			call := prevSignificant == ')' || prevSignificant == ']' ||
				(prevSignificant == 'a' && !operatorWords[prevWord])
			stack = append(stack, opener{pos: len(out), group: r == '(' && !call, comma: -1})
			out = append(out, r)
			prevSignificant, prevWord = r, ""
			i++

		case r == ',':
			if n := len(stack); n > 0 {
				stack[n-1].comma = len(out)
			}
			out = append(out, r)
			prevSignificant, prevWord = r, ""
			i++

		case r == ')' || r == ']' || r == '}':
			closing := r
			if n := len(stack); n > 0 {
				top := stack[n-1]
				stack = stack[:n-1]
				if r == ')' && top.group && top.comma >= 0 {
					out[top.pos] = '['
					if onlySpaces(out[top.comma+1:]) {
						out[top.comma] = ' '
					}
					closing = ']'
				}
			}
			out = append(out, closing)
			prevSignificant, prevWord = r, ""
			i++

		default:
			out = append(out, r)
			if !unicode.IsSpace(r) {
				prevSignificant, prevWord = r, ""
			}
			i++
		}
	}
	return string(out)
}

func onlySpaces(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// skipString returns the index just past the string literal starting at i.
// An unterminated literal extends to the end of the input.
func skipString(runes []rune, i int) int {
	quote := runes[i]
	for j := i + 1; j < len(runes); j++ {
		switch runes[j] {
		case '\\':
			if quote != '`' {
				j++
			}
		case quote:
			return j + 1
		}
	}
	return len(runes)
}

// nextWord returns the identifier following position i (skipping spaces) and
// the index just past it.
func nextWord(runes []rune, i int) (string, int) {
	j := i
	for j < len(runes) && unicode.IsSpace(runes[j]) {
		j++
	}
	if j == i || j >= len(runes) || !isIdentStart(runes[j]) {
		return "", i
	}
	end := j
	for end < len(runes) && isIdentPart(runes[end]) {
		end++
	}
	return string(runes[j:end]), end
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
