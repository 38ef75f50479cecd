// Package quiz generates recall questions from a knowledge base and scores
// answers against it. Model replies are JSON-shaped but unreliable; parsing
// falls back from strict JSON to repair to a heuristic, and every result
// carries its parse provenance.
package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/liuzhen0/recall/internal/store/vector"
)

const (
	// passagesPerQuestion controls how much source material backs each
	// generated question.
	passagesPerQuestion = 2
	// evaluationPassages is the number of reference chunks retrieved when
	// scoring an answer.
	evaluationPassages = 3
	maxQuestionCount   = 20
)

// TextGenerator produces a JSON-shaped reply for a prompt.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Retriever fetches the chunks most similar to a query from a knowledge
// base's collection.
type Retriever interface {
	Query(ctx context.Context, name, query string, topK int) ([]vector.Result, error)
}

// Service generates questions and evaluates answers.
type Service struct {
	gen       TextGenerator
	retriever Retriever
	logger    *slog.Logger
}

// New wires a quiz service over the generator and retriever.
func New(gen TextGenerator, retriever Retriever, logger *slog.Logger) *Service {
	return &Service{gen: gen, retriever: retriever, logger: logger}
}

// Generate produces up to count questions grounded in the knowledge base's
// content.
func (s *Service) Generate(ctx context.Context, kbName string, count int) (*QuestionSet, error) {
	if count < 1 {
		count = 1
	}
	if count > maxQuestionCount {
		count = maxQuestionCount
	}

	passages, err := s.retriever.Query(ctx, kbName, kbName, count*passagesPerQuestion)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("knowledge base %q has no content to quiz on", kbName)
	}

	reply, err := s.gen.GenerateJSON(ctx, buildGeneratePrompt(passages, count))
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	set, err := parseQuestions(reply)
	if err != nil {
		return nil, fmt.Errorf("parse question reply: %w", err)
	}
	if len(set.Questions) > count {
		set.Questions = set.Questions[:count]
	}
	if set.Provenance != ProvenanceParsed {
		s.logger.Warn("question reply needed recovery", "provenance", set.Provenance)
	}
	return set, nil
}

// Evaluate scores an answer to a question against the knowledge base and
// returns the evaluation with its parse provenance.
func (s *Service) Evaluate(ctx context.Context, kbName, question, answer string) (*Evaluation, error) {
	if strings.TrimSpace(answer) == "" {
		return &Evaluation{Score: 0, Feedback: "未作答。", Provenance: ProvenanceParsed}, nil
	}

	passages, err := s.retriever.Query(ctx, kbName, question, evaluationPassages)
	if err != nil {
		return nil, err
	}
	reference := joinPassages(passages)

	reply, err := s.gen.GenerateJSON(ctx, buildEvaluatePrompt(question, answer, reference))
	if err != nil {
		// The reference text is local; a degraded heuristic score beats
		// failing the whole quiz round on a model outage.
		s.logger.Warn("evaluation call failed, falling back to heuristic", "error", err)
		return &Evaluation{
			Score:      heuristicScore(answer, reference),
			Feedback:   "自動評分：模型暫時無法使用，分數由關鍵詞重疊估計。",
			Provenance: ProvenanceHeuristic,
		}, nil
	}

	ev := parseEvaluation(reply, answer, reference)
	if ev.Provenance != ProvenanceParsed {
		s.logger.Warn("evaluation reply needed recovery", "provenance", ev.Provenance)
	}
	return ev, nil
}

func buildGeneratePrompt(passages []vector.Result, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "你是一位出題老師。根據以下資料出 %d 題測驗問題，檢驗讀者對內容的理解。\n", count)
	b.WriteString("只回傳 JSON，格式：{\"questions\": [{\"question\": \"...\", \"topic\": \"...\"}]}\n\n資料：\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p.Content)
	}
	return b.String()
}

func buildEvaluatePrompt(question, answer, reference string) string {
	var b strings.Builder
	b.WriteString("你是一位閱卷老師。根據參考資料評估回答，給 0 到 100 的分數與簡短評語。\n")
	b.WriteString("只回傳 JSON，格式：{\"score\": 85, \"feedback\": \"...\"}\n\n")
	fmt.Fprintf(&b, "問題：%s\n回答：%s\n\n參考資料：\n%s\n", question, answer, reference)
	return b.String()
}

func joinPassages(passages []vector.Result) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n")
}
