package databox

import (
	"slices"
	"strings"
)

// Whitespace is the delimiter value meaning "split on runs of whitespace".
const Whitespace = ""

// delimiterCandidates are tried in order when no delimiter is forced. Tab
// is considered ahead of them only when it splits some line differently
// from whitespace.
var delimiterCandidates = []string{Whitespace, ",", ";"}

// splitLine tokenizes one line. Whitespace splitting collapses runs; an
// explicit delimiter keeps empty fields but trims each token and drops a
// trailing empty field.
func splitLine(line, delimiter string) []string {
	line = strings.TrimRight(line, "\r\n")
	if delimiter == Whitespace {
		return strings.Fields(line)
	}
	if strings.TrimSpace(line) == "" {
		return nil
	}
	tokens := strings.Split(line, delimiter)
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	if n := len(tokens); n > 1 && tokens[n-1] == "" {
		tokens = tokens[:n-1]
	}
	return tokens
}

// splitKey separates the first token from the rest of the line.
func splitKey(line, delimiter string) (string, string) {
	line = strings.TrimRight(line, "\r\n")
	if delimiter == Whitespace {
		line = strings.TrimLeft(line, " \t\f\v")
		i := strings.IndexAny(line, " \t\f\v")
		if i < 0 {
			return line, ""
		}
		return line[:i], strings.TrimSpace(line[i:])
	}
	key, rest, _ := strings.Cut(line, delimiter)
	return strings.TrimSpace(key), strings.TrimSpace(rest)
}

// ResolveDelimiter picks the token delimiter for lines. A forced delimiter
// always wins. Tab is chosen when its data lines share one token count
// greater than 1 and it tokenizes some sampled line differently from
// whitespace. Otherwise the first candidate whose data lines share one token
// count greater than 1 is chosen. When no candidate sees a data line wider
// than one token, the first candidate with single-token data is used;
// anything else is whitespace. sample bounds how many lines are inspected;
// 0 inspects all of them.
func ResolveDelimiter(lines []string, forced *string, sample int) string {
	if forced != nil {
		return *forced
	}
	if sample > 0 && len(lines) > sample {
		lines = lines[:sample]
	}

	tab := dataShape(lines, "\t")
	if tab.consistent && tab.width > 1 && !sameTokens(lines, "\t", Whitespace) {
		return "\t"
	}

	wide := tab.widest > 1
	single := -1
	for ci, candidate := range delimiterCandidates {
		shape := dataShape(lines, candidate)
		if shape.consistent && shape.width > 1 {
			return candidate
		}
		if shape.widest > 1 {
			wide = true
		}
		if shape.consistent && shape.width == 1 && single < 0 {
			single = ci
		}
	}
	if single >= 0 && !wide {
		return delimiterCandidates[single]
	}
	return Whitespace
}

// shape summarizes the all-numeric lines a delimiter produces: the token
// count of the first, whether every other agrees, and the widest seen.
type shape struct {
	width      int
	widest     int
	consistent bool
}

func dataShape(lines []string, delimiter string) shape {
	s := shape{consistent: true}
	for _, line := range lines {
		tokens := splitLine(line, delimiter)
		if len(tokens) == 0 || !allNumeric(tokens) {
			continue
		}
		if len(tokens) > s.widest {
			s.widest = len(tokens)
		}
		if s.width == 0 {
			s.width = len(tokens)
		} else if s.width != len(tokens) {
			s.consistent = false
		}
	}
	return s
}

// sameTokens reports whether a and b split every line identically.
func sameTokens(lines []string, a, b string) bool {
	for _, line := range lines {
		if !slices.Equal(splitLine(line, a), splitLine(line, b)) {
			return false
		}
	}
	return true
}

// describeDelimiter renders a delimiter for log output.
func describeDelimiter(d string) string {
	switch d {
	case Whitespace:
		return "whitespace"
	case "\t":
		return "tab"
	}
	return d
}
