package index

import (
	"fmt"
	"time"

	"meddoc/internal/services"
)

// Record is one indexed document.
type Record struct {
	ID           int64      `json:"id"`
	Path         string     `json:"path"`
	ContentHash  string     `json:"content_hash"`
	DocType      string     `json:"doc_type"`
	Vendor       string     `json:"vendor"`
	Model        string     `json:"model"`
	CategorySlug string     `json:"category_slug"`
	GroupSlug    string     `json:"group_slug"`
	DeviceSlug   string     `json:"device_slug"`
	Summary      string     `json:"summary"`
	Confidence   float64    `json:"confidence"`
	Confirmed    bool       `json:"confirmed"`
	SizeBytes    int64      `json:"size_bytes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	IndexedAt    time.Time  `json:"indexed_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
}

// Draft is the classifier proposal written by UpsertDraft.
type Draft struct {
	Path         string
	ContentHash  string
	DocType      string
	Vendor       string
	Model        string
	CategorySlug string
	GroupSlug    string
	DeviceSlug   string
	Summary      string
	Confidence   float64
	SizeBytes    int64
}

// Event is one row of the append-only audit log.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"event_type"`
	Path      string    `json:"path"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Event types written by the pipeline.
const (
	EventDraftCreated         = "draft_created"
	EventClassificationFailed = "classification_failed"
	EventConfirmed            = "confirmed"
	EventEdited               = "edited"
	EventDeleted              = "deleted"
)

// Query filters Search. Zero values do not filter.
type Query struct {
	DocType    string
	DeviceSlug string
	Category   string
	Group      string
	Keyword    string
	Confirmed  *bool
	OrderBy    string
	Limit      int
}

// Stats summarizes the index.
type Stats struct {
	Total     int            `json:"total"`
	Confirmed int            `json:"confirmed"`
	Drafts    int            `json:"drafts"`
	ByDocType map[string]int `json:"by_doc_type"`
}

// DatabaseHealth describes the index database for diagnostics.
type DatabaseHealth struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    int    `json:"schema_version"`
	TotalRecords     int    `json:"total_records"`
	IntegrityCheck   bool   `json:"integrity_check"`
	Error            string `json:"error,omitempty"`
}

// Editable field names accepted by UpdateFields.
const (
	FieldVendor       = "vendor"
	FieldModel        = "model"
	FieldDocType      = "doc_type"
	FieldSummary      = "summary"
	FieldCategorySlug = "category_slug"
	FieldGroupSlug    = "group_slug"
)

var editableFields = map[string]bool{
	FieldVendor:       true,
	FieldModel:        true,
	FieldDocType:      true,
	FieldSummary:      true,
	FieldCategorySlug: true,
	FieldGroupSlug:    true,
}

// EditableField reports whether name may be passed to UpdateFields.
func EditableField(name string) bool {
	return editableFields[name]
}

var (
	// ErrNotFound reports a missing record.
	ErrNotFound = fmt.Errorf("record not found: %w", services.ErrNotFound)
	// ErrAlreadyConfirmed reports a second confirm of the same record.
	ErrAlreadyConfirmed = fmt.Errorf("record already confirmed: %w", services.ErrConflict)
	// ErrPathConflict reports a relocation onto a path owned by another record.
	ErrPathConflict = fmt.Errorf("target path already indexed: %w", services.ErrConflict)
	// ErrInvalidOrder reports an order_by outside the whitelist.
	ErrInvalidOrder = fmt.Errorf("invalid order_by: %w", services.ErrValidation)
)

// FieldError names a field UpdateFields refused.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q is not editable", e.Field)
}

func (e *FieldError) Unwrap() error { return services.ErrValidation }
