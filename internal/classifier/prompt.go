package classifier

import (
	"fmt"
	"strings"

	"meddoc/internal/taxonomy"
)

const promptTemplate = `You classify documents for a Vietnamese medical equipment supplier.

File name: %s

Content excerpt:
%s

Answer with a single JSON object and nothing else:
{
  "doc_type": one of [%s],
  "vendor": manufacturer name, or "Unknown",
  "model": device model name without the vendor, or "Unknown",
  "category_slug": "<category>/<group>" chosen from the list below,
  "summary": one sentence in Vietnamese,
  "confidence": number between 0 and 1
}

Valid category/group pairs:
%s`

const noExcerpt = "(no text could be extracted; use the file name)"

// BuildPrompt renders the user message for one document.
func BuildPrompt(filename, excerpt, categories string) string {
	excerpt = strings.TrimSpace(excerpt)
	if excerpt == "" {
		excerpt = noExcerpt
	}
	categories = strings.TrimSpace(categories)
	if categories == "" {
		categories = taxonomy.UnclassifiedCategory + "/" + taxonomy.OtherGroup
	}
	return fmt.Sprintf(promptTemplate, filename, excerpt, strings.Join(taxonomy.DocTypes(), ", "), categories)
}
