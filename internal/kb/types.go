package kb

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength bounds knowledge-base names in runes. Names become both
// relational primary keys and vector collection names, so the bound applies
// once here for both stores.
const MaxNameLength = 100

// KnowledgeBase is the relational record describing one knowledge base.
// Name is the primary identity; the vector collection carries the same name.
type KnowledgeBase struct {
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	FileCount     int       `json:"file_count"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValidateName checks a knowledge-base name before it reaches either store.
// Names are compared and stored exactly as given after trimming; there is
// no case folding.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Validationf("knowledge base name must not be empty")
	}
	if trimmed != name {
		return Validationf("knowledge base name must not have leading or trailing whitespace")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return Validationf("knowledge base name exceeds %d characters", MaxNameLength)
	}
	for _, r := range name {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return Validationf("knowledge base name contains illegal character %q", r)
		}
	}
	return nil
}
