package task

import (
	"strings"

	"github.com/orchestry/plugin-openai/engine/openai"
)

// extractOutputText flattens the output list into a single string: each
// function call contributes its raw arguments, each message contributes its
// output_text parts joined by newline.
func extractOutputText(output []openai.OutputItem) string {
	parts := make([]string, 0, len(output))
	for _, item := range output {
		switch item.Type {
		case "function_call":
			parts = append(parts, item.Arguments)
		case "message":
			texts := make([]string, 0, len(item.Content))
			for _, content := range item.Content {
				if content.Type == "output_text" {
					texts = append(texts, content.Text)
				}
			}
			if len(texts) > 0 {
				parts = append(parts, strings.Join(texts, "\n"))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// extractSources collects URLs from url_citation annotations, in order.
func extractSources(output []openai.OutputItem) []string {
	var sources []string
	for _, item := range output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			for _, annotation := range content.Annotations {
				if annotation.Type == "url_citation" && annotation.URL != "" {
					sources = append(sources, annotation.URL)
				}
			}
		}
	}
	return sources
}
