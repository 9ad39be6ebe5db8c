package session

import (
	"strings"
)

// GistMarker separates a model response from its self-produced summary.
const GistMarker = "---GIST---"

// gistInstruction is appended to the last user message so the model
// emits a gist after its response.
const gistInstruction = "\n\n---\n" +
	"After your response, on a new line add the exact marker '---GIST---' " +
	"followed by a 2-sentence factual summary of your response. " +
	"This summary will be used as context for future turns."

// InjectGistInstruction appends the hidden gisting instruction to a
// message's content.
func InjectGistInstruction(content string) string {
	return content + gistInstruction
}

// ExtractGist splits a model response into clean content and an
// optional gist. The last marker occurrence wins; an empty suffix
// yields no gist.
func ExtractGist(responseText string) (content, gist string) {
	idx := strings.LastIndex(responseText, GistMarker)
	if idx < 0 {
		return responseText, ""
	}

	content = strings.TrimRight(responseText[:idx], " \t\r\n")
	gist = strings.TrimSpace(responseText[idx+len(GistMarker):])
	return content, gist
}

// BuildCondensationPrompt asks the summarizer to condense old history.
func BuildCondensationPrompt(messages []Message) string {
	var history strings.Builder
	for i, m := range messages {
		if i > 0 {
			history.WriteByte('\n')
		}
		history.WriteString(strings.ToUpper(m.Role))
		history.WriteString(": ")
		history.WriteString(m.Content)
	}

	return "You are a precise technical summarizer. " +
		"Condense the following conversation into a brief factual summary " +
		"that preserves all key decisions, constraints, and technical details. " +
		"The summary must be complete enough to serve as context for " +
		"continuing the conversation without the original messages.\n\n" +
		"CONVERSATION:\n" + history.String() + "\n\n" +
		"SUMMARY:"
}

// BuildFallbackGistPrompt asks the summarizer to gist a response that
// lacked a marker.
func BuildFallbackGistPrompt(responseText string) string {
	return "Provide a 2-sentence factual summary of the following text. " +
		"Include only key facts and decisions. No commentary.\n\n" +
		"TEXT:\n" + responseText + "\n\n" +
		"SUMMARY:"
}
