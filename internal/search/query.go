package search

import (
	"sort"
	"strings"

	"meddoc/internal/taxonomy"
)

// docTypeKeywords maps operator shorthand to doc types.
var docTypeKeywords = map[string]string{
	"hợp đồng":   taxonomy.DocContract,
	"hd":         taxonomy.DocContract,
	"báo giá":    taxonomy.DocQuotation,
	"chào giá":   taxonomy.DocQuotation,
	"bg":         taxonomy.DocQuotation,
	"kỹ thuật":   taxonomy.DocTechnical,
	"kt":         taxonomy.DocTechnical,
	"cấu hình":   taxonomy.DocConfiguration,
	"ch":         taxonomy.DocConfiguration,
	"thông tin":  taxonomy.DocInformation,
	"tt":         taxonomy.DocInformation,
	"trúng thầu": taxonomy.DocTenderAward,
	"so sánh":    taxonomy.DocComparison,
	"ss":         taxonomy.DocComparison,
	"hướng dẫn":  taxonomy.DocManual,
	"hdsd":       taxonomy.DocManual,
}

// keywordsByLength holds the keys longest first so "hdsd" wins over "hd".
var keywordsByLength = func() [][]string {
	keys := make([]string, 0, len(docTypeKeywords))
	for k := range docTypeKeywords {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	out := make([][]string, len(keys))
	for i, k := range keys {
		out[i] = strings.Fields(k)
	}
	return out
}()

// ParseQuery splits raw into a detected doc type and the remaining keyword.
// Keywords match whole words only; the first, longest match wins and is
// removed from the keyword.
func ParseQuery(raw string) (docType, keyword string) {
	words := strings.Fields(strings.ToLower(raw))
	for _, phrase := range keywordsByLength {
		if at := indexPhrase(words, phrase); at >= 0 {
			docType = docTypeKeywords[strings.Join(phrase, " ")]
			rest := append(append([]string(nil), words[:at]...), words[at+len(phrase):]...)
			return docType, strings.Join(rest, " ")
		}
	}
	return "", strings.Join(words, " ")
}

func indexPhrase(words, phrase []string) int {
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
