package llm

import (
	_ "embed"
	"strings"
)

var (
	//go:embed prompts/analysis.txt
	analysisTemplate string
	//go:embed prompts/transcription.txt
	transcriptionPrompt string
)

const (
	jobClause   = " against the provided job description"
	jobGuidance = "- Job Match: Cross-reference the resume against the job description, calling out matched and missing keywords and requirements\n"
)

// AnalysisPrompt returns the evaluation instruction sent ahead of the resume content.
func AnalysisPrompt(withJobDescription bool) string {
	clause, guidance := "", ""
	if withJobDescription {
		clause, guidance = jobClause, jobGuidance
	}
	return strings.NewReplacer(
		"{{JOB_CLAUSE}}", clause,
		"{{JOB_GUIDANCE}}\n", guidance,
	).Replace(analysisTemplate)
}

// TranscriptionPrompt is the instruction used when a model reads text off a document.
func TranscriptionPrompt() string {
	return transcriptionPrompt
}
