package aicat

import (
	"fmt"
	"strings"

	"github.com/starford/kwcat/internal/models"
)

const promptTemplate = `You are an SEO analyst organising search keywords for a research project.
Research topic: %s

Group the %d numbered keywords below into between 3 and 8 semantic categories.

Rules:
- Assign every keyword to exactly one category, referring to it by its number.
- Do not invent keywords and do not leave any keyword out.
- Pick each category icon from this list only: %s
- Use a short lowercase slug as the category id.
- Respond with a single JSON object and nothing else, no markdown, in this shape:
{"categories":[{"id":"slug","name":"Category name","icon":"tag","description":"One sentence","keywords":[1,2,3]}]}

Keywords:
%s`

// BuildPrompt returns the classification instruction for sample, numbering
// keywords from 1.
func BuildPrompt(sample []models.KeywordRecord, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "general"
	}
	var list strings.Builder
	for i, rec := range sample {
		fmt.Fprintf(&list, "%d. %s\n", i+1, strings.TrimSpace(rec.Text))
	}
	return fmt.Sprintf(promptTemplate, topic, len(sample), strings.Join(Icons, ", "), list.String())
}
