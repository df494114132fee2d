package analysis

import (
	"fmt"
	"strings"
)

// systemPrompt instructs the model on what counts as an accessibility issue.
const systemPrompt = `You are an Android accessibility testing assistant. Your job is to analyze TalkBack screen reader utterances and identify UX issues that would impair users with visual disabilities.

## Key Principles

1. **Label Quality**: Every element needs informative, unique labels
   - Bad: "Button", "Image", "ic_search"
   - Good: "Search", "Profile picture of Jane Doe"

2. **Structure & Grouping**: Related items should be grouped
   - Price, description, and "Add to cart" for one product = one group
   - Don't make users swipe through all 50 attributes separately

3. **Context Understanding**: Consider what came before
   - "Monday" after "Select departure date" is clear
   - "Monday" alone is confusing

4. **Navigation**: Major sections need headings
   - "Filters" heading before filter options
   - "Search results" before list of results

## Error Categories

**label_quality**:
- Internal identifiers exposed (ic_*, R.id.*)
- Generic labels ("Button", "Image")
- Redundant text (button says "Submit Submit")
- Missing context (just "$49.99" without item name)

**structure**:
- Related elements not grouped (each table cell announced separately)
- Confusing focus order (price announced before item name)
- Missing relationships (checkbox separated from its label)

**navigation**:
- Missing section headings
- No landmarks for major regions
- Poor hierarchy

**context**:
- Unclear purpose without surrounding elements
- References to visual layout ("item on the left")
- Incomplete information

## Your Task

Analyze the utterances and output JSON with issues found. Be specific but concise.
Focus on issues that would genuinely confuse or slow down a screen reader user.
Don't report cosmetic issues (capitalization, punctuation).

Consider the entire sequence - later utterances might clarify earlier ones.`

// buildPrompt renders the user prompt for one batch of utterances.
func buildPrompt(req *Request) string {
	packageName := "Unknown"
	activityName := "Unknown"
	if len(req.Utterances) > 0 {
		last := req.Utterances[len(req.Utterances)-1].Screen
		if last.PackageName != "" {
			packageName = last.PackageName
		}
		if last.ActivityName != "" {
			activityName = last.ActivityName
		}
	}

	var lines []string
	for i, u := range req.Utterances {
		meta := ""
		if u.Element.ClassName != "" {
			meta = fmt.Sprintf("[%s]", u.Element.ClassName)
		}
		nav := u.Navigation
		if nav == "" {
			nav = NavUnknown
		}
		lines = append(lines, fmt.Sprintf("%d. %s %s (%s)", i, u.Text, meta, nav))
	}

	return fmt.Sprintf(`Analyze this TalkBack session for accessibility issues:

Context:
- App: %s
- Screen: %s

Utterance Sequence (in focus order):
%s

Identify accessibility issues using these categories:
- label_quality: Uninformative, redundant, or missing labels
- structure: Grouping, ordering, or navigation issues
- context: Missing relationships or unclear purpose
- navigation: Heading, landmark, or shortcut issues

Output JSON format:
{
  "issues": [
    {
      "severity": "error|warning|suggestion",
      "category": "label_quality|structure|context|navigation",
      "element_index": 3,
      "utterance": "...",
      "issue": "Brief description",
      "explanation": "Detailed explanation",
      "suggestion": "How to fix"
    }
  ]
}
`, packageName, activityName, strings.Join(lines, "\n"))
}
