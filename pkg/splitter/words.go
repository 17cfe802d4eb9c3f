package splitter

import "strings"

// SplitWords packs whitespace-separated words greedily into chunks of at most
// maxWords words. Chunks do not overlap and the final chunk may be shorter.
// Runs of whitespace collapse to a single space.
func SplitWords(text string, maxWords int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxWords <= 0 {
		return []string{strings.Join(words, " ")}
	}

	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := min(start+maxWords, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
