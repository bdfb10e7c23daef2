package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"mailconsole/internal/api"
)

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func loadBody(body, bodyFile string) (string, error) {
	if bodyFile == "" {
		return body, nil
	}
	if body != "" {
		return "", fmt.Errorf("use either --body or --body-file")
	}
	data, err := os.ReadFile(bodyFile)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseCTA reads a "text|link" pair.
func parseCTA(value string) (api.CTA, error) {
	text, link, ok := strings.Cut(value, "|")
	if !ok {
		return api.CTA{}, fmt.Errorf("invalid --cta %q: want \"text|link\"", value)
	}
	return api.CTA{Text: strings.TrimSpace(text), Link: strings.TrimSpace(link)}, nil
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %s", value)
	}
	return id, nil
}
