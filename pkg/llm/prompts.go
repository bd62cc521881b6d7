package llm

import (
	"github.com/tmc/langchaingo/prompts"
)

var summaryPrompt = prompts.NewPromptTemplate(`You are a financial news analyst.
Analyze the following news item:
Title: {{.title}}
Summary: {{.content}}

Provide a concise summary in bullet points, identify key entities, and categorize the news.
Output valid JSON matching the following structure:
{
    "summary": "- Key point 1\n- Key point 2",
    "entities": ["entity1", "entity2"],
    "category": "CategoryName"
}`, []string{"title", "content"})

var scorePrompt = prompts.NewPromptTemplate(`You are a senior market analyst.
Evaluate the importance of the following news item on a scale of 0-100.
Focus on market impact, urgency, and relevance to global finance.
0 = Noise/Irrelevant
100 = Critical/Market Moving

Title: {{.title}}
Summary: {{.content}}

Provide the score, a brief reasoning, and an explanation of why it matters.
Output valid JSON matching the following structure:
{
    "score": 85,
    "reasoning": "This event directly affects interest rates...",
    "why_it_matters": "Investors should watch..."
}`, []string{"title", "content"})

var evalPrompt = prompts.NewPromptTemplate(`You are a quality assurance reviewer.
Evaluate the quality of the following analysis.

Original News:
{{.original_text}}

Generated Analysis (Summary & Score):
Summary: {{.summary}}
Score: {{.score}}
Reasoning: {{.reasoning}}

Check for:
1. Accuracy: Does the summary reflect the original text?
2. Consistency: Does the score and reasoning make sense for the content?

Rate the quality on a scale of 1-10. Return valid JSON.
{
    "quality_score": 8,
    "feedback": "Summary is accurate but score seems too high for this minor event."
}`, []string{"original_text", "summary", "score", "reasoning"})
