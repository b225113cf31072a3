// Package scoring grades finalized answers, persists one score per question and recomputes the
// session report.
package scoring

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Neutral default used when model output cannot be interpreted.
const (
	NeutralScore       = 50
	SummaryParseFailed = "Unable to parse model output"
)

const maxNesting = 3

// envelopeKeys are outer fields some model servers wrap the generated text in.
var envelopeKeys = []string{"response", "text", "content", "output", "message"}

var resultKeys = []string{"technical", "communication", "completeness", "summary", "feedback", "red_flags"}

// greedy first '{' to last '}'
var braceBlob = regexp.MustCompile(`(?s)\{.*\}`)

type field uint8

const (
	fieldTechnical field = 1 << iota
	fieldCommunication
	fieldCompleteness
)

// Result is the fixed-shape grading output.
type Result struct {
	Technical     int      `json:"technical"`
	Communication int      `json:"communication"`
	Completeness  int      `json:"completeness"`
	RedFlags      []string `json:"red_flags"`
	Summary       string   `json:"summary"`
	// Fallback is true when the neutral default was used.
	Fallback bool `json:"-"`

	present field
}

// HasTechnical reports whether the model supplied a technical score.
func (r Result) HasTechnical() bool { return r.present&fieldTechnical != 0 }

// HasCompleteness reports whether the model supplied a completeness score.
func (r Result) HasCompleteness() bool { return r.present&fieldCompleteness != 0 }

// NeutralDefault returns the safe fallback score with the given summary.
func NeutralDefault(summary string) Result {
	return Result{
		Technical:     NeutralScore,
		Communication: NeutralScore,
		Completeness:  NeutralScore,
		RedFlags:      []string{},
		Summary:       summary,
		Fallback:      true,
		present:       fieldTechnical | fieldCommunication | fieldCompleteness,
	}
}

// Parse extracts a Result from raw model output. It never fails: anything it cannot interpret
// yields NeutralDefault(SummaryParseFailed).
func Parse(raw []byte) Result {
	if obj, ok := extract(raw); ok {
		return fromObject(obj)
	}
	return NeutralDefault(SummaryParseFailed)
}

func extract(raw []byte) (map[string]any, bool) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil, false
	}
	if obj, ok := decodeJSON(body, 0); ok {
		return obj, true
	}

	// line-delimited / streamed bodies: the last line carries the final object
	if lines := nonEmptyLines(body); len(lines) > 1 {
		if obj, ok := decodeJSON(lines[len(lines)-1], 0); ok {
			return obj, true
		}
		if joined := joinStreamed(lines); joined != "" {
			if obj, ok := decodeText(joined, 1); ok {
				return obj, true
			}
		}
	}
	return fromBraces(string(body), 0)
}

// decodeJSON parses data as a JSON value and looks for a result object in it.
func decodeJSON(data []byte, depth int) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return fromValue(v, depth)
}

func fromValue(v any, depth int) (map[string]any, bool) {
	if depth > maxNesting {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		if hasAny(t, resultKeys) {
			return t, true
		}
		for _, k := range envelopeKeys {
			inner, ok := t[k]
			if !ok {
				continue
			}
			if obj, ok := fromValue(inner, depth+1); ok {
				return obj, true
			}
		}
	case string:
		return decodeText(t, depth+1)
	}
	return nil, false
}

// decodeText handles a string that should contain JSON, possibly surrounded by prose.
func decodeText(s string, depth int) (map[string]any, bool) {
	if depth > maxNesting {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if obj, ok := decodeJSON([]byte(s), depth); ok {
		return obj, true
	}
	return fromBraces(s, depth)
}

func fromBraces(s string, depth int) (map[string]any, bool) {
	if blob := braceBlob.FindString(s); blob != "" {
		if obj, ok := decodeJSON([]byte(blob), depth); ok {
			return obj, true
		}
	}
	objs := balancedObjects(s)
	if len(objs) == 0 {
		return nil, false
	}
	if obj, ok := decodeJSON([]byte(objs[0]), depth); ok {
		return obj, true
	}
	if len(objs) > 1 {
		return decodeJSON([]byte(objs[len(objs)-1]), depth)
	}
	return nil, false
}

// balancedObjects returns the top-level brace-balanced objects in s, in order. An opening brace
// that never closes is skipped.
func balancedObjects(s string) []string {
	var out []string
	for i := 0; i < len(s); {
		j := strings.IndexByte(s[i:], '{')
		if j < 0 {
			break
		}
		start := i + j
		end := matchBrace(s, start)
		if end < 0 {
			i = start + 1
			continue
		}
		out = append(out, s[start:end+1])
		i = end + 1
	}
	return out
}

// matchBrace returns the index of the brace closing the one at start, honoring JSON string
// quoting, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func nonEmptyLines(body []byte) [][]byte {
	var out [][]byte
	for _, ln := range bytes.Split(body, []byte("\n")) {
		if ln = bytes.TrimSpace(ln); len(ln) > 0 {
			out = append(out, ln)
		}
	}
	return out
}

// joinStreamed concatenates the "response" token of each streamed chunk.
func joinStreamed(lines [][]byte) string {
	var sb strings.Builder
	for _, ln := range lines {
		var chunk struct {
			Response *string `json:"response"`
		}
		if err := json.Unmarshal(ln, &chunk); err != nil || chunk.Response == nil {
			continue
		}
		sb.WriteString(*chunk.Response)
	}
	return sb.String()
}

func fromObject(obj map[string]any) Result {
	var r Result
	if v, ok := obj["technical"]; ok {
		r.Technical = toScore(v)
		r.present |= fieldTechnical
	}
	if v, ok := obj["communication"]; ok {
		r.Communication = toScore(v)
		r.present |= fieldCommunication
	}
	if v, ok := obj["completeness"]; ok {
		r.Completeness = toScore(v)
		r.present |= fieldCompleteness
	}
	r.RedFlags = toStrings(obj["red_flags"])
	if s, ok := obj["summary"].(string); ok && strings.TrimSpace(s) != "" {
		r.Summary = strings.TrimSpace(s)
	} else if s, ok := obj["feedback"].(string); ok {
		r.Summary = strings.TrimSpace(s)
	}
	return r
}

// toScore coerces a JSON value to an int in [0,100]. Non-numeric values give 0.
func toScore(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		f = parseNumeric(t)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return clamp(int(math.Round(f)))
}

// parseNumeric accepts "85", "85%", "85/100" and "8/10".
func parseNumeric(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 != nil || err2 != nil || d <= 0 {
			return 0
		}
		return n / d * 100
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func toStrings(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func hasAny(m map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
