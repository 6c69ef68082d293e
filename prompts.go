package contextual

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
)

const presenceSystemPrompt = "You are a strict classifier. Decide whether the user input contains background context besides its question. Reply with one label only: context_provided or context_missing."

const relevanceSystemPrompt = "You are a strict classifier. Decide whether the given context is useful for answering the given question. Reply with one label only: relevant or not_relevant."

const splitterSystemPrompt = "You separate user input into its background context and its question. Copy the original wording. Output a single JSON object with the keys context and question, and nothing else."

var thinkRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)           //nolint:gochecknoglobals
var fenceRegex = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```") //nolint:gochecknoglobals

var validate = validator.New() //nolint:gochecknoglobals

// StripThinkBlocks removes <think>...</think> blocks from LLM responses.
// Some models (like qwen3) output reasoning in these blocks.
func StripThinkBlocks(s string) string {
	return strings.TrimSpace(thinkRegex.ReplaceAllString(s, ""))
}

// getContent extracts usable text from an LLM response. It strips <think>
// blocks from Text first. If Text is empty (e.g. thinking models that put
// everything in reasoning tokens), falls back to the Reasoning field.
func getContent(resp LLMResponse, logger arbor.ILogger, label string) string {
	text := StripThinkBlocks(resp.Text)
	if strings.TrimSpace(text) != "" {
		return text
	}
	if strings.TrimSpace(resp.Reasoning) != "" {
		logger.Debug().Str("step", label).Int("chars", len(resp.Reasoning)).Msg("Text empty, using reasoning")
		return StripThinkBlocks(resp.Reasoning)
	}
	return ""
}

var labelPrefixes = []string{"label:", "answer:", "result:", "verdict:"} //nolint:gochecknoglobals

// normalizeLabel reduces a classifier reply to a canonical snake_case token.
// Only the first non-empty line is considered.
func normalizeLabel(raw string) string {
	s := StripThinkBlocks(raw)
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			s = line
			break
		}
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range labelPrefixes {
		s = strings.TrimSpace(strings.TrimPrefix(s, p))
	}
	s = strings.Trim(s, " \t\"'`*.,!:;()[]")
	words := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	return strings.Join(words, "_")
}

func parsePresence(raw string) (PresenceVerdict, bool) {
	switch normalizeLabel(raw) {
	case "context_provided", "provided":
		return PresenceProvided, true
	case "context_missing", "missing":
		return PresenceMissing, true
	}
	return "", false
}

func parseRelevance(raw string) (RelevanceVerdict, bool) {
	switch normalizeLabel(raw) {
	case "not_relevant", "irrelevant":
		return NotRelevant, true
	case "relevant":
		return Relevant, true
	}
	return "", false
}

// parseSplit decodes the splitter's JSON reply. Code fences and any prose
// around the object are ignored: each "{" is tried in turn and the first
// object holding a non-empty context and question wins.
func parseSplit(raw string) (ContextQuestionPair, error) {
	s := StripThinkBlocks(raw)
	if m := fenceRegex.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	var lastErr error
	for i := strings.Index(s, "{"); i >= 0; {
		pair, err := decodeSplitAt(s[i:])
		if err == nil {
			return pair, nil
		}
		lastErr = err
		next := strings.Index(s[i+1:], "{")
		if next < 0 {
			break
		}
		i += next + 1
	}
	if lastErr == nil {
		return ContextQuestionPair{}, fmt.Errorf("no JSON object in %q", raw)
	}
	return ContextQuestionPair{}, fmt.Errorf("%w in %q", lastErr, raw)
}

// decodeSplitAt reads one JSON value from the start of s and ignores
// whatever follows it.
func decodeSplitAt(s string) (ContextQuestionPair, error) {
	var decoded struct {
		Context  string `json:"context"`
		Question string `json:"question"`
	}
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&decoded); err != nil {
		return ContextQuestionPair{}, fmt.Errorf("decode: %w", err)
	}

	pair := ContextQuestionPair{
		Context:  strings.TrimSpace(decoded.Context),
		Question: strings.TrimSpace(decoded.Question),
	}
	if err := validate.Struct(pair); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			missing := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				missing = append(missing, strings.ToLower(fe.Field()))
			}
			return ContextQuestionPair{}, fmt.Errorf("empty field(s) %s", strings.Join(missing, ", "))
		}
		return ContextQuestionPair{}, err
	}
	return pair, nil
}

// QuestionPortion returns the last interrogative sentence of text, or its
// last sentence when none ends in a question mark.
func QuestionPortion(text string) string {
	sentences := splitSentences(strings.TrimSpace(text))
	for i := len(sentences) - 1; i >= 0; i-- {
		if strings.HasSuffix(sentences[i], "?") {
			return sentences[i]
		}
	}
	if len(sentences) > 0 {
		return sentences[len(sentences)-1]
	}
	return strings.TrimSpace(text)
}

func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
	}
	for i, r := range runes {
		switch {
		case r == '\n':
			flush(i + 1)
		case r == '.' || r == '?' || r == '!':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush(i + 1)
			}
		}
	}
	flush(len(runes))
	return out
}
