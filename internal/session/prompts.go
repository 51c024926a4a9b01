package session

import (
	"fmt"

	"github.com/p-n-ai/pai-studio/internal/ai"
)

// Generation parameters per call.
const (
	studyMaxTokens        = 800
	studyTemperature      = 0.7
	questionMaxTokens     = 300
	questionTemperature   = 0.7
	modelMaxTokens        = 800
	modelTemperature      = 0.5
	evaluationMaxTokens   = 600
	evaluationTemperature = 0.4
	chatMaxTokens         = 500
	chatTemperature       = 0.7
)

func studyRequest(topic string) ai.GenerateRequest {
	return ai.GenerateRequest{
		Prompt: fmt.Sprintf(`You are an English language tutor. Explain the following topic as if it were a lesson:

Topic: %s

Structure your explanation in 3 parts:
1. Theoretical introduction
2. Detailed explanation with examples
3. Brief questions to verify student understanding

Use a clear and professional tone. RESPOND ONLY IN ENGLISH.`, topic),
		MaxTokens:   studyMaxTokens,
		Temperature: studyTemperature,
		Task:        ai.TaskStudy,
	}
}

func questionRequest(topic string) ai.GenerateRequest {
	return ai.GenerateRequest{
		Prompt: fmt.Sprintf(`English examiner. Create an oral exam question on:
"%s"
Complex question requiring in-depth knowledge. Clear and specific.
QUESTION ONLY. NO INTRODUCTION. ENGLISH ONLY.`, topic),
		MaxTokens:   questionMaxTokens,
		Temperature: questionTemperature,
		Task:        ai.TaskQuestion,
	}
}

func modelAnswerRequest(topic, question string) ai.GenerateRequest {
	return ai.GenerateRequest{
		Prompt: fmt.Sprintf(`English expert. Answer this question about %s:
Question: %s
Comprehensive, well-structured answer (perfect score). Include terminology, examples.
250-300 words. ENGLISH ONLY.`, topic, question),
		MaxTokens:   modelMaxTokens,
		Temperature: modelTemperature,
		Task:        ai.TaskModelAnswer,
	}
}

func evaluationRequest(topic, question, modelAnswer, answer string) ai.GenerateRequest {
	return ai.GenerateRequest{
		Prompt: fmt.Sprintf(`English examiner. Evaluate student response vs model answer.
TOPIC: %s
QUESTION: %s
MODEL: %s
STUDENT: %s

Evaluate on scale 0-100:
- Content (40%%): Key points coverage
- Language (30%%): Grammar, vocabulary
- Structure (30%%): Organization, clarity

Format: SCORE: [0-100]
COMMENT: [strengths and areas for improvement]
ENGLISH ONLY.`, topic, question, modelAnswer, answer),
		MaxTokens:   evaluationMaxTokens,
		Temperature: evaluationTemperature,
		Task:        ai.TaskEvaluation,
	}
}

func chatRequest(text string) ai.GenerateRequest {
	return ai.GenerateRequest{
		Prompt:      text + "\n\nPlease respond in English only.",
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
		Task:        ai.TaskChat,
	}
}

func defaultQuestion(topic string) string {
	return fmt.Sprintf("Explain the key concepts of %s and provide examples.", topic)
}

func defaultModelAnswer(topic string) string {
	return fmt.Sprintf("This would be a model answer for the question about %s. "+
		"In a real scenario, this would contain a comprehensive explanation of the topic "+
		"with examples and proper terminology.", topic)
}
