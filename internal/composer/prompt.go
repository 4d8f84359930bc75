package composer

import (
	"fmt"
	"strings"

	"github.com/arshiii08/windbot/internal/model"
)

// noFactors is rendered when the attribution list is empty so the prompt
// never carries a blank section.
const noFactors = "No strong influencing factors found."

// explainSystemPrompt configures the model as a domain-explanation assistant
// for the final narration call.
const explainSystemPrompt = "You are a helpful assistant that explains wind turbine faults."

const explainTemplate = `You are a wind turbine fault analysis assistant.

A user asked:
%q

Based on the model's prediction, the following factors contributed to the turbine's fault risk:
%s

In addition, these real-world error logs were recorded on the same date:
%s

Explain in natural language why the fault risk is elevated or low for this turbine on that date.
Use both model reasoning and operational evidence. Keep it clear for engineers and managers.`

// RenderAttribution turns ranked contributions into the human-readable factor
// list embedded in the narration prompt. The direction of each factor follows
// the sign of its contribution.
func RenderAttribution(contribs []model.Contribution) string {
	if len(contribs) == 0 {
		return noFactors
	}

	lines := make([]string, len(contribs))
	for i, c := range contribs {
		impact := "reduced"
		if c.ShapValue > 0 {
			impact = "increased"
		}
		lines[i] = fmt.Sprintf("• %s %s the fault risk", c.Feature, impact)
	}
	return strings.Join(lines, "\n")
}

// ExplanationPrompt assembles the single narration prompt from the original
// question, the rendered attribution, and the error-log summary.
func ExplanationPrompt(question, attributionText, contextText string) (system, user string) {
	return explainSystemPrompt, fmt.Sprintf(explainTemplate, question, attributionText, contextText)
}
