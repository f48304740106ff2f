package insight

import (
	"fmt"
	"strings"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

// renderContent flattens an analyzer Result into the markdown document
// stored on the insight.
func renderContent(result *Result) string {
	var b strings.Builder
	b.WriteString(result.Summary)

	if result.UserIntent != "" {
		fmt.Fprintf(&b, "\n\n**Intent:** %s", result.UserIntent)
	}
	if len(result.FrustrationPoints) > 0 {
		b.WriteString("\n\n**Friction:**")
		for _, p := range result.FrustrationPoints {
			fmt.Fprintf(&b, "\n- %s", p)
		}
	}
	if len(result.Improvements) > 0 {
		b.WriteString("\n\n**Suggestions:**")
		for _, imp := range result.Improvements {
			fmt.Fprintf(&b, "\n- %s", imp)
		}
	}
	return b.String()
}

// actionCategories collects the distinct categories across follow-up
// actions, in first-seen order.
func actionCategories(actions []models.FollowUpAction) []string {
	seen := make(map[string]bool, len(actions))
	var categories []string
	for _, a := range actions {
		if a.Category == "" || seen[a.Category] {
			continue
		}
		seen[a.Category] = true
		categories = append(categories, a.Category)
	}
	return categories
}
