// Package cognition is the engine's one pure, state-free layer: it
// never calls the LLM, touches the world, or blocks. BuildRequest turns an
// agent + situation into a CompletionRequest; ClassifyIntent turns the
// resulting free text back into an IntentType.
package cognition

import (
	"fmt"
	"strings"

	"github.com/schoolsim/campus-engine/internal/intent"
	"github.com/schoolsim/campus-engine/internal/llm"
	"github.com/schoolsim/campus-engine/internal/memory"
	"github.com/schoolsim/campus-engine/internal/world"
)

const (
	defaultTemperature = 0.8
	defaultMaxTokens   = 200
	maxMemorySnippets  = 5
)

// AgentView is the read-only slice of AgentState + personality narrative
// cognition needs; callers build it from a world.AgentState snapshot so
// this package never imports world's mutation surface.
type AgentView struct {
	Name        string
	Personality world.PersonalityParams
	Career      world.CareerCategory
	Emotion     world.EmotionalState
}

// personalityNarrative renders the four MBTI axes as a short
// descriptive clause, the way the system prompt's "personality narrative"
// requirement calls for.
func personalityNarrative(p world.PersonalityParams) string {
	axis := func(v float64, lowWord, highWord string) string {
		if v >= 0 {
			return highWord
		}
		return lowWord
	}
	return fmt.Sprintf(
		"%s, %s, %s and %s, with a %s type label (%s)",
		axis(p.EI, "introverted", "extraverted"),
		axis(p.SN, "intuitive", "observant"),
		axis(p.TF, "feeling-led", "thinking-led"),
		axis(p.JP, "flexible", "structured"),
		p.Label(),
		p.Label(),
	)
}

func emotionalSummary(e world.EmotionalState) string {
	mood := "neutral"
	switch {
	case e.Valence > 0.3:
		mood = "upbeat"
	case e.Valence < -0.3:
		mood = "downcast"
	}
	stressWord := "calm"
	if e.Stress > 0.6 {
		stressWord = "stressed"
	}
	return fmt.Sprintf("%s and %s", mood, stressWord)
}

// BuildRequest produces the two-message completion request:
// a system prompt describing identity, personality, career and emotional
// summary with role-play rules, and a user message carrying the perception
// paragraph plus up to maxMemorySnippets retrieved memory snippets.
func BuildRequest(agent AgentView, situation string, memories []memory.ScoredMemory) llm.CompletionRequest {
	system := fmt.Sprintf(
		"You are %s, a high school student. Personality: %s. Aspiring career: %s. Current emotional state: %s. "+
			"Stay in character, respond with what you want to do right now in one or two sentences, and never break the fourth wall.",
		agent.Name, personalityNarrative(agent.Personality), agent.Career, emotionalSummary(agent.Emotion),
	)

	var user strings.Builder
	user.WriteString(situation)
	if len(memories) > 0 {
		user.WriteString("\n\nRelevant memories:\n")
		n := len(memories)
		if n > maxMemorySnippets {
			n = maxMemorySnippets
		}
		for _, m := range memories[:n] {
			fmt.Fprintf(&user, "- %s\n", m.Content)
		}
	}

	return llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user.String()},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
}

// keyword families, checked in this exact order. Study is checked ahead of
// Collaborate/Talk so an utterance naming both study and togetherness
// ("我想和朋友一起学习") still resolves to Study.
var keywordFamilies = []struct {
	kind     intent.Kind
	keywords []string
}{
	{intent.KindConfront, []string{"对抗", "冲突", "吵架", "生气", "讨厌"}},
	{intent.KindStudy, []string{"学习", "作业", "图书馆", "复习", "自习"}},
	{intent.KindCollaborate, []string{"一起", "合作", "小组", "团队"}},
	{intent.KindTalk, []string{"聊", "说话", "谈谈", "聊天"}},
	{intent.KindExercise, []string{"运动", "锻炼", "跑步", "打球"}},
	{intent.KindEat, []string{"吃", "午饭", "晚饭", "早餐"}},
	{intent.KindRest, []string{"休息", "睡觉", "睡"}},
	{intent.KindExplore, []string{"探索", "参观", "逛逛"}},
}

// ClassifyIntent maps free text onto one of nine IntentType categories by
// scanning keyword families in a fixed order; the first family with any
// keyword present wins. Text matching none of the named families becomes
// Other, carrying the raw text.
func ClassifyIntent(text string) intent.Type {
	for _, family := range keywordFamilies {
		for _, kw := range family.keywords {
			if strings.Contains(text, kw) {
				return intent.Type{Kind: family.kind}
			}
		}
	}
	return intent.Type{Kind: intent.KindOther, Other: text}
}
