package quiz

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Provenance records how a model reply was turned into a usable value.
// Callers can distinguish a clean parse from a repaired or guessed one.
type Provenance string

const (
	// ProvenanceParsed means the reply was valid JSON as-is.
	ProvenanceParsed Provenance = "parsed"
	// ProvenanceRepaired means JSON was recovered from a fenced block or
	// embedded fragment of the reply.
	ProvenanceRepaired Provenance = "repaired"
	// ProvenanceHeuristic means parsing failed entirely and the value was
	// derived from the raw text. Lowest confidence.
	ProvenanceHeuristic Provenance = "heuristic"
)

// Question is one generated quiz question.
type Question struct {
	Question string `json:"question"`
	Topic    string `json:"topic,omitempty"`
}

// QuestionSet is the outcome of question generation.
type QuestionSet struct {
	Questions  []Question
	Provenance Provenance
}

// Evaluation is the outcome of scoring one answer. Score is on a 0-100
// scale.
type Evaluation struct {
	Score      float64
	Feedback   string
	Provenance Provenance
}

var (
	fencedBlock  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	jsonFragment = regexp.MustCompile(`(?s)(\[.*\]|\{.*\})`)
	scoreField   = regexp.MustCompile(`"score"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
)

// extractJSON pulls a JSON payload out of a reply that is not valid JSON
// as a whole: first a fenced code block, then the widest bracketed fragment.
func extractJSON(reply string) (string, bool) {
	if m := fencedBlock.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := jsonFragment.FindString(reply); m != "" {
		return m, true
	}
	return "", false
}

// parseQuestions turns a model reply into a question set. Strict JSON first,
// then repair, then a line heuristic keeping interrogative lines.
func parseQuestions(reply string) (*QuestionSet, error) {
	if qs, ok := unmarshalQuestions(reply); ok {
		return &QuestionSet{Questions: qs, Provenance: ProvenanceParsed}, nil
	}
	if fragment, ok := extractJSON(reply); ok {
		if qs, ok := unmarshalQuestions(fragment); ok {
			return &QuestionSet{Questions: qs, Provenance: ProvenanceRepaired}, nil
		}
	}

	var qs []Question
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "0123456789.-) "))
		if line == "" {
			continue
		}
		if strings.ContainsAny(line, "?？") {
			qs = append(qs, Question{Question: line})
		}
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("no questions recoverable from reply")
	}
	return &QuestionSet{Questions: qs, Provenance: ProvenanceHeuristic}, nil
}

// unmarshalQuestions accepts either a bare array of questions or an object
// with a "questions" field.
func unmarshalQuestions(s string) ([]Question, bool) {
	var bare []Question
	if err := json.Unmarshal([]byte(s), &bare); err == nil && len(bare) > 0 && bare[0].Question != "" {
		return bare, true
	}
	var wrapped struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err == nil && len(wrapped.Questions) > 0 {
		return wrapped.Questions, true
	}
	return nil, false
}

// parseEvaluation turns a model reply into an evaluation. Strict JSON, then
// repair (including a bare score-field scrape), then a keyword-overlap
// heuristic against the reference text.
func parseEvaluation(reply, answer, reference string) *Evaluation {
	if ev, ok := unmarshalEvaluation(reply); ok {
		ev.Provenance = ProvenanceParsed
		return ev
	}
	if fragment, ok := extractJSON(reply); ok {
		if ev, ok := unmarshalEvaluation(fragment); ok {
			ev.Provenance = ProvenanceRepaired
			return ev
		}
	}
	if m := scoreField.FindStringSubmatch(reply); m != nil {
		var score float64
		if _, err := fmt.Sscanf(m[1], "%f", &score); err == nil {
			return &Evaluation{
				Score:      clampScore(score),
				Feedback:   strings.TrimSpace(reply),
				Provenance: ProvenanceRepaired,
			}
		}
	}

	return &Evaluation{
		Score:      heuristicScore(answer, reference),
		Feedback:   "自動評分：無法解析模型回覆，分數由關鍵詞重疊估計。",
		Provenance: ProvenanceHeuristic,
	}
}

func unmarshalEvaluation(s string) (*Evaluation, bool) {
	var payload struct {
		Score    *float64 `json:"score"`
		Feedback string   `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(s), &payload); err != nil || payload.Score == nil {
		return nil, false
	}
	return &Evaluation{Score: clampScore(*payload.Score), Feedback: payload.Feedback}, true
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// heuristicScore estimates answer quality as the fraction of answer tokens
// found in the reference text, scaled to 0-100. Tokens are whole words for
// Latin text and single runes for CJK.
func heuristicScore(answer, reference string) float64 {
	tokens := tokenize(answer)
	if len(tokens) == 0 {
		return 0
	}
	refSet := make(map[string]struct{})
	for _, tok := range tokenize(reference) {
		refSet[tok] = struct{}{}
	}
	hits := 0
	for _, tok := range tokens {
		if _, ok := refSet[tok]; ok {
			hits++
		}
	}
	return clampScore(float64(hits) / float64(len(tokens)) * 100)
}

func tokenize(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, strings.ToLower(word.String()))
			word.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}
