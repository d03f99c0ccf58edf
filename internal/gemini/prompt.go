package gemini

import (
	"fmt"
	"strings"

	"moderation-service/internal/models"
)

// SystemInstruction primes the model for content-policy review of
// serialized fiction chapters. The response must be a single JSON object.
const SystemInstruction = `You are a content moderation reviewer for a platform publishing serialized fiction and comics.
You receive a set of platform content policies and the text of one submitted chapter.
Evaluate the chapter against EVERY policy section and respond with a single JSON object, no prose, no markdown:
{
  "status": "pass" | "warn" | "block",
  "risk_score": <integer 0-100>,
  "labels": ["<category tag>", ...],
  "findings": [
    {"section_id": "<policy section>", "verdict": "pass" | "warn" | "block", "rationale": "<one short sentence>"}
  ]
}
Rules:
- Emit exactly one finding per policy section you were given.
- "block" means the chapter clearly violates the section; "warn" means a human should look; "pass" means no concern.
- risk_score reflects overall risk: 0 is harmless, 100 is a certain severe violation.
- labels are short category tags for the concerns you found (e.g. "violence", "sexual-content").
- Fiction depicting dark themes is not automatically a violation; judge against the policy text you were given.`

// BuildPrompt embeds the policy snapshot and the normalized chapter text
// into a single user prompt.
func BuildPrompt(req models.AnalysisRequest) string {
	var b strings.Builder

	b.WriteString("CONTENT POLICIES:\n")
	for _, p := range req.Policies {
		section := p.SubCategory
		if section == "" {
			section = fmt.Sprintf("policy-%d", p.ID)
		}
		fmt.Fprintf(&b, "[%s] %s\n%s\n\n", section, p.Title, p.Body)
	}

	fmt.Fprintf(&b, "CHAPTER TITLE: %s\n\n", req.Title)
	b.WriteString("CHAPTER TEXT:\n")
	b.WriteString(req.Content)
	b.WriteString("\n\nClassify the chapter now. Respond with the JSON object only.")

	return b.String()
}

// SectionIDs lists the policy section identifiers of a request, in
// snapshot order. Used to validate that findings reference known sections.
func SectionIDs(req models.AnalysisRequest) []string {
	ids := make([]string, 0, len(req.Policies))
	for _, p := range req.Policies {
		section := p.SubCategory
		if section == "" {
			section = fmt.Sprintf("policy-%d", p.ID)
		}
		ids = append(ids, section)
	}
	return ids
}
