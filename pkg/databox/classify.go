package databox

// LineKind is the shape the classifier assigned to a line.
type LineKind int

const (
	// LineBlank is empty or whitespace only
	LineBlank LineKind = iota
	// LineData has only real or complex numeric tokens
	LineData
	// LineLiteralHeader is "key <delim> literal"
	LineLiteralHeader
	// LineScalarHeader is "key <delim> number"
	LineScalarHeader
	// LineArrayHeader is "key v1 v2 ..." with more than one value
	LineArrayHeader
	// LineCandidateKeys is anything else, possibly a column-name row
	LineCandidateKeys
)

var lineKindNames = [...]string{"blank", "data", "literal_header", "scalar_header", "array_header", "candidate_keys"}

func (k LineKind) String() string {
	if int(k) < len(lineKindNames) {
		return lineKindNames[k]
	}
	return "unknown"
}

// Classification is the result of classifying one line. Key and Value are
// the header entry the line contributes; Tokens are the split line.
type Classification struct {
	Kind   LineKind
	Tokens []string
	Key    string
	Value  Value
}

// IsKeyCandidate reports whether the line may name the columns below it.
func (c Classification) IsKeyCandidate() bool {
	return c.Kind == LineArrayHeader || c.Kind == LineCandidateKeys
}

// Classify decides what one line of a databox file holds.
func Classify(line, delimiter string) Classification {
	tokens := splitLine(line, delimiter)
	if len(tokens) == 0 {
		return Classification{Kind: LineBlank}
	}
	if allNumeric(tokens) {
		return Classification{Kind: LineData, Tokens: tokens}
	}

	key, remainder := splitKey(line, delimiter)
	out := Classification{Tokens: tokens, Key: key}

	if remainder != "" {
		if v, err := ParseLiteral(remainder); err == nil {
			out.Kind = LineLiteralHeader
			out.Value = v
			return out
		}
	}

	switch {
	case len(tokens) == 2 && isNumeric(tokens[1]):
		out.Kind = LineScalarHeader
		out.Value = numericValue(tokens[1])
	case len(tokens) > 2:
		out.Kind = LineArrayHeader
		out.Value = tokenList(tokens[1:])
	default:
		out.Kind = LineCandidateKeys
		out.Value = String(remainder)
	}
	return out
}

func isNumeric(tok string) bool {
	_, _, ok := parseNumeric(tok)
	return ok
}

func allNumeric(tokens []string) bool {
	for _, t := range tokens {
		if !isNumeric(t) {
			return false
		}
	}
	return true
}

func numericValue(tok string) Value {
	c, isComplex, _ := parseNumeric(tok)
	if isComplex {
		return Complex(c)
	}
	return Float(real(c))
}

// tokenList coerces an all-numeric remainder to numbers and keeps anything
// else as strings.
func tokenList(tokens []string) Value {
	items := make([]Value, len(tokens))
	numeric := allNumeric(tokens)
	for i, t := range tokens {
		if numeric {
			items[i] = numericValue(t)
		} else {
			items[i] = String(t)
		}
	}
	return List(items...)
}
