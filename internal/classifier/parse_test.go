package classifier_test

import (
	"testing"

	"meddoc/internal/classifier"
	"meddoc/internal/taxonomy"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantDocType    string
		wantConfidence float64
		wantEstimated  bool
		wantFallback   bool
	}{
		{
			name:           "complete answer",
			content:        `{"doc_type":"cau_hinh","vendor":"Philips","model":"Affiniti 70","category_slug":"chan_doan_hinh_anh/sieu_am","summary":"x","confidence":0.66}`,
			wantDocType:    taxonomy.DocConfiguration,
			wantConfidence: 0.66,
		},
		{
			name:           "missing confidence with full identity",
			content:        `{"doc_type":"ky_thuat","vendor":"Philips","model":"Affiniti 70"}`,
			wantDocType:    taxonomy.DocTechnical,
			wantConfidence: 0.8,
			wantEstimated:  true,
		},
		{
			name:           "missing confidence with category only",
			content:        `{"doc_type":"bao_gia","vendor":"Unknown","category_slug":"02_xet_nghiem/sinh_hoa"}`,
			wantDocType:    taxonomy.DocQuotation,
			wantConfidence: 0.75,
			wantEstimated:  true,
		},
		{
			name:           "out of range confidence",
			content:        `{"doc_type":"ky_thuat","vendor":"A","model":"B","confidence":7}`,
			wantDocType:    taxonomy.DocTechnical,
			wantConfidence: 0.5,
			wantEstimated:  true,
		},
		{
			name:           "numeric string confidence",
			content:        `{"doc_type":"ky_thuat","vendor":"A","model":"B","confidence":"0.9"}`,
			wantDocType:    taxonomy.DocTechnical,
			wantConfidence: 0.9,
		},
		{
			name:           "numeric string out of range",
			content:        `{"doc_type":"ky_thuat","vendor":"A","model":"B","confidence":"1.4"}`,
			wantDocType:    taxonomy.DocTechnical,
			wantConfidence: 0.5,
			wantEstimated:  true,
		},
		{
			name:           "string confidence",
			content:        `{"doc_type":"ky_thuat","vendor":"A","model":"B","confidence":"high"}`,
			wantDocType:    taxonomy.DocTechnical,
			wantConfidence: 0.5,
			wantEstimated:  true,
		},
		{
			name:           "unknown doc type folds to other",
			content:        `Here you go: {"doc_type":"brochure","vendor":"A","model":"B","confidence":0.4} hope it helps`,
			wantDocType:    taxonomy.DocOther,
			wantConfidence: 0.4,
		},
		{
			name:           "fenced answer",
			content:        "```json\n{\"doc_type\":\"Hợp đồng\",\"confidence\":0.9}\n```",
			wantDocType:    taxonomy.DocContract,
			wantConfidence: 0.9,
		},
		{
			name:           "non-string vendor",
			content:        `{"doc_type":"ky_thuat","vendor":42}`,
			wantDocType:    taxonomy.DocOther,
			wantConfidence: 0.5,
			wantEstimated:  true,
			wantFallback:   true,
		},
		{
			name:           "no object",
			content:        "I cannot help with that",
			wantDocType:    taxonomy.DocOther,
			wantConfidence: 0.5,
			wantEstimated:  true,
			wantFallback:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.ParseAnswer(tt.content)
			if got.DocType != tt.wantDocType {
				t.Fatalf("doc type = %q, want %q", got.DocType, tt.wantDocType)
			}
			if got.Confidence != tt.wantConfidence {
				t.Fatalf("confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
			if got.ConfidenceEstimated != tt.wantEstimated {
				t.Fatalf("estimated = %v, want %v", got.ConfidenceEstimated, tt.wantEstimated)
			}
			if got.Fallback != tt.wantFallback {
				t.Fatalf("fallback = %v, want %v", got.Fallback, tt.wantFallback)
			}
			if got.Vendor == "" || got.Model == "" {
				t.Fatalf("vendor and model must default, got %+v", got)
			}
		})
	}
}

func TestFallbackResultSummary(t *testing.T) {
	r := classifier.FallbackResult()
	if r.Summary != classifier.FallbackSummary || r.Vendor != classifier.UnknownValue {
		t.Fatalf("unexpected fallback %+v", r)
	}
}
