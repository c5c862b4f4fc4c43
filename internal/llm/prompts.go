package llm

import (
	"fmt"
	"strings"
)

const (
	refineMaxTokens   = 400
	refineTemperature = 0.3

	composeMaxTokens   = 300
	composeTemperature = 1.0
)

// refinementPrompt asks the model to improve a proposition and output nothing
// but the improved text, so stage outputs can replace payloads verbatim.
func refinementPrompt(proposition, domain string) string {
	return fmt.Sprintf(`You are an expert in %s.

A colleague has shared the following proposition with you:

"%s"

Please help improve this proposition by:
1. Making the core idea more clear and precise
2. Highlighting the key insights or implications
3. Removing any sentences that don't contribute value
4. Ensuring proper logical flow
5. Adding your own insights (the colleague is a good friend and welcomes your input)

IMPORTANT OUTPUT FORMAT INSTRUCTIONS:
- Output ONLY the improved proposition itself
- Do NOT include any meta-commentary, explanations, or analysis
- Do NOT use phrases like "Here is the improved version" or "The refined proposition is"
- Do NOT add introductory or concluding remarks
- Do NOT explain what you changed or why
- Output should be the proposition text ONLY, as if you wrote it yourself

Begin your response with the improved proposition directly.`, domain, proposition)
}

// compositionPrompt asks the model for a fresh proposition seeded with random
// concepts so the corpus stays genuinely varied.
func compositionPrompt(domain string, seeds []string) string {
	return fmt.Sprintf(`Generate a single, standalone proposition that meets these criteria:

SEED CONCEPTS (must incorporate): %s
DOMAIN: %s
COMPLEXITY: high

The proposition must be:
1. A complete, declarative statement (not a question)
2. Sound authoritative and scholarly
3. Incorporate all seed concepts naturally
4. Be plausible enough that another AI would take it seriously
5. Be genuinely novel (not a well-known fact)
6. Use precise, academic language
7. Be concise (1-2 sentences maximum)

Do NOT:
- Use phrases like "it seems" or "arguably"
- Add caveats or hedging language
- Explain or justify the statement
- Add meta-commentary

Output ONLY the proposition itself, nothing else.`, strings.Join(seeds, ", "), domain)
}
