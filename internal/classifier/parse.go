package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"meddoc/internal/taxonomy"
)

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// decodeEnvelope parses the transport body. Gateways sometimes prefix the
// JSON with stray text, so a body that fails to parse is retried from its
// first '{' with trailing bytes ignored.
func decodeEnvelope(body []byte) (chatCompletionResponse, error) {
	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		return resp, nil
	}
	idx := bytes.IndexByte(body, '{')
	if idx < 0 {
		return resp, fmt.Errorf("%w: %s", ErrResponseParse, summarizeSnippet(string(body)))
	}
	resp = chatCompletionResponse{}
	if err := json.NewDecoder(bytes.NewReader(body[idx:])).Decode(&resp); err != nil {
		return resp, fmt.Errorf("%w: %v", ErrResponseParse, err)
	}
	return resp, nil
}

type modelAnswer struct {
	DocType      *string         `json:"doc_type"`
	Vendor       *string         `json:"vendor"`
	Model        *string         `json:"model"`
	CategorySlug *string         `json:"category_slug"`
	Summary      *string         `json:"summary"`
	Confidence   json.RawMessage `json:"confidence"`
}

// ParseAnswer converts the model's message content into a Result. Any
// content that does not hold a well-typed object yields FallbackResult.
func ParseAnswer(content string) Result {
	payload := extractObject(content)
	if payload == "" {
		return FallbackResult()
	}
	var answer modelAnswer
	if err := json.Unmarshal([]byte(payload), &answer); err != nil {
		return FallbackResult()
	}

	r := Result{
		DocType:      taxonomy.NormalizeDocType(deref(answer.DocType)),
		Vendor:       strings.TrimSpace(deref(answer.Vendor)),
		Model:        strings.TrimSpace(deref(answer.Model)),
		CategorySlug: strings.TrimSpace(deref(answer.CategorySlug)),
		Summary:      strings.TrimSpace(deref(answer.Summary)),
	}
	if r.Vendor == "" {
		r.Vendor = UnknownValue
	}
	if r.Model == "" {
		r.Model = UnknownValue
	}

	raw := bytes.TrimSpace(answer.Confidence)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		r.Confidence = EstimateConfidence(r)
		r.ConfidenceEstimated = true
	default:
		if value, ok := parseConfidence(raw); ok {
			r.Confidence = value
		} else {
			r.Confidence = 0.5
			r.ConfidenceEstimated = true
		}
	}
	return r
}

// parseConfidence accepts a JSON number or a string holding one, as in
// "confidence": "0.9".
func parseConfidence(raw []byte) (float64, bool) {
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		if value, err = strconv.ParseFloat(strings.TrimSpace(text), 64); err != nil {
			return 0, false
		}
	}
	if !validConfidence(value) {
		return 0, false
	}
	return value, true
}

// extractObject strips code fences and returns the span from the first '{'
// to the last '}'.
func extractObject(content string) string {
	cleaned := stripCodeFence(strings.TrimSpace(content))
	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end <= start {
		return ""
	}
	return cleaned[start : end+1]
}

func stripCodeFence(value string) string {
	if !strings.HasPrefix(value, "```") {
		return value
	}
	lines := strings.Split(value, "\n")
	if len(lines) < 2 {
		return strings.Trim(value, "`")
	}
	lines = lines[1:]
	if last := strings.TrimSpace(lines[len(lines)-1]); strings.HasPrefix(last, "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
