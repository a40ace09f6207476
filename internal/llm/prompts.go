package llm

import "strings"

// RefinePromptVersion identifies the refine prompt in logs.
const RefinePromptVersion = "refine_v1"

const refinePromptTemplate = `You are an expert career coach specializing in CV writing. Please refine the following CV content to optimize its wording, grammar, and overall impact for a professional presentation. Provide suggestions and improvements where necessary, without changing the meaning of the original content.

CV Content: {{cvContent}}`

// RefineSystemMessage keeps the answer to the rewritten text only.
const RefineSystemMessage = "Return only the refined text, with no preamble, quotes or markdown."

// BuildRefinePrompt renders the refine prompt for text.
func BuildRefinePrompt(text string) string {
	return strings.Replace(refinePromptTemplate, "{{cvContent}}", text, 1)
}
