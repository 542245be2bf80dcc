package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"wellbeing-companion/internal/domain"
)

var errEmptyReply = errors.New("model returned no usable reply")

var (
	fenceStartRe = regexp.MustCompile("(?is)^\\s*```(?:json)?\\s*")
	fenceEndRe   = regexp.MustCompile("(?is)\\s*```\\s*$")
	replyFieldRe = regexp.MustCompile(`(?is)"reply"\s*:\s*"((?:\\.|[^"\\])*)"`)
)

// ParseReply interpreta la salida cruda del modelo.
// Intenta JSON, luego el campo "reply" por regex y por último texto plano.
// Herramientas fuera del catálogo se descartan.
func ParseReply(raw string) (Reply, error) {
	cleaned := cleanJSONResponse(raw)
	if cleaned == "" {
		return Reply{}, errEmptyReply
	}

	candidates := []string{extractFirstJSONObject(cleaned), cleaned}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		var tmp struct {
			Reply         string  `json:"reply"`
			SuggestedTool *string `json:"suggested_tool"`
		}
		if err := json.Unmarshal([]byte(c), &tmp); err != nil {
			continue
		}
		text := strings.TrimSpace(tmp.Reply)
		if text == "" {
			continue
		}
		return Reply{Text: text, SuggestedTool: knownTool(tmp.SuggestedTool)}, nil
	}

	if text, ok := extractReplyByRegex(cleaned); ok {
		return Reply{Text: text}, nil
	}

	// Sin JSON: si parece un objeto roto no lo mostramos.
	if strings.HasPrefix(cleaned, "{") {
		return Reply{}, errEmptyReply
	}
	return Reply{Text: cleaned}, nil
}

func knownTool(id *string) *domain.ToolID {
	if id == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*id))
	if v == "" || v == "null" || v == "none" {
		return nil
	}
	tool, ok := domain.LookupTool(domain.ToolID(v))
	if !ok {
		return nil
	}
	out := tool.ID
	return &out
}

// cleanJSONResponse quita fences ```json ... ``` y BOM.
func cleanJSONResponse(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "\uFEFF")
	s = fenceStartRe.ReplaceAllString(s, "")
	s = fenceEndRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func extractReplyByRegex(s string) (string, bool) {
	m := replyFieldRe.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	unq, err := strconv.Unquote(`"` + m[1] + `"`)
	if err != nil {
		unq = strings.NewReplacer(`\n`, "\n", `\"`, `"`, `\\`, `\`).Replace(m[1])
	}
	unq = strings.TrimSpace(unq)
	return unq, unq != ""
}

func extractFirstJSONObject(input string) string {
	start := strings.IndexByte(input, '{')
	if start == -1 {
		return ""
	}

	inString := false
	escape := false
	depth := 0

	for i := start; i < len(input); i++ {
		ch := input[i]

		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}
	return ""
}
