package taxonomy

import (
	"strings"

	"meddoc/internal/slug"
)

// Document types produced by classification.
const (
	DocTechnical     = "ky_thuat"
	DocConfiguration = "cau_hinh"
	DocQuotation     = "bao_gia"
	DocTenderAward   = "trung_thau"
	DocContract      = "hop_dong"
	DocComparison    = "so_sanh"
	DocInformation   = "thong_tin"
	DocLink          = "lien_ket"
	DocManual        = "huong_dan_su_dung"
	DocOther         = "khac"
)

var docTypeLabels = map[string]string{
	DocTechnical:     "Kỹ thuật",
	DocConfiguration: "Cấu hình",
	DocQuotation:     "Báo giá",
	DocTenderAward:   "Trúng thầu",
	DocContract:      "Hợp đồng",
	DocComparison:    "So sánh",
	DocInformation:   "Thông tin",
	DocLink:          "Liên kết",
	DocManual:        "Hướng dẫn sử dụng",
	DocOther:         "Khác",
}

// DocTypes lists the vocabulary in display order.
func DocTypes() []string {
	return []string{
		DocTechnical, DocConfiguration, DocQuotation, DocTenderAward, DocContract,
		DocComparison, DocInformation, DocLink, DocManual, DocOther,
	}
}

// ValidDocType reports whether value is part of the vocabulary.
func ValidDocType(value string) bool {
	_, ok := docTypeLabels[value]
	return ok
}

// NormalizeDocType folds value to slug form and maps anything outside the
// vocabulary to DocOther.
func NormalizeDocType(value string) string {
	n := slug.Normalize(value)
	if ValidDocType(n) {
		return n
	}
	return DocOther
}

// DocTypeLabel returns the Vietnamese label, or the raw value when unknown.
func DocTypeLabel(docType string) string {
	if label, ok := docTypeLabels[docType]; ok {
		return label
	}
	return strings.TrimSpace(docType)
}
