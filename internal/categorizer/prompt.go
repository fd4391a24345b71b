package categorizer

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const singlePromptTemplate = `You are a text categorization expert. You will categorize the given text into one of the following categories and provide a brief explanation.

Categories: %s

Text: %s

Respond only with a valid JSON object. Do not include any additional text or commentary.

The object must contain:
- "category": the category the text belongs to, exactly as written in the category list.
- "confidence": the confidence score (0-1) that the text belongs to the category.
- "explanation": a brief, 1-2 sentence explanation for the categorization.`

const batchPromptHeader = `You are a text categorization expert. For each text provided in the list below, you will categorize it into one of the following categories and provide a brief explanation.

Categories: %s

Texts:
%s
Respond only with a valid JSON object. Do not include any additional text or commentary.

The object must contain a "results" array with exactly one item per input text, in the same order the texts were given. Each item must contain:
- "inputText": the original text, exactly as it was provided.
- "category": the category the text belongs to, exactly as written in the category list.
- "confidence": the confidence score (0-1) that the text belongs to the category.
- "explanation": a brief, 1-2 sentence explanation for the categorization.`

func buildSingleMessages(text, categories string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf(singlePromptTemplate, categories, text),
		},
	}
}

func buildBatchMessages(texts []string, categories string) []openai.ChatCompletionMessage {
	var list strings.Builder
	for _, t := range texts {
		fmt.Fprintf(&list, "- %q\n", t)
	}

	return []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf(batchPromptHeader, categories, list.String()),
		},
	}
}
