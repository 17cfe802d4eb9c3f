package research

import "strings"

const SystemPrompt = "You are an OSINT assistant."

const (
	promptDeepDive = "Based on the following aggregated knowledge:\n\n" +
		"{knowledge}\n\n" +
		"List the top areas where further deep dive investigation should be performed. " +
		"Return a comma-separated list of topics."

	promptSummary = "Using the aggregated knowledge below:\n\n" +
		"{knowledge}\n\n" +
		"Answer the following question comprehensively:\n\n" +
		"{question}\n\n" +
		"Provide a well-organized summary in markdown format."

	promptChunk = "Summarize the following text in a concise manner:\n\n{chunk}\n\nSummary:"
)

// DefaultQuestion is asked after a person lookup when the caller has none.
const DefaultQuestion = "Write a summary about this person"

func render(tmpl string, pairs ...string) string {
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func deepDivePrompt(knowledge string) string {
	return render(promptDeepDive, "{knowledge}", knowledge)
}

func summaryPrompt(knowledge, question string) string {
	return render(promptSummary, "{knowledge}", knowledge, "{question}", question)
}

func chunkPrompt(chunk string) string {
	return render(promptChunk, "{chunk}", chunk)
}

// LookupQuery is the seed query for a person lookup.
func LookupQuery(name string) string {
	return "Learn as much as you can about " + name
}
