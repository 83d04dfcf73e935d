package analyses

import (
	"encoding/json"
	"time"

	"atsense-api/internal/extract"
)

// PayloadKind says what was sent to the model as the resume.
type PayloadKind string

const (
	PayloadText     PayloadKind = "text"
	PayloadDocument PayloadKind = "document"
)

// Result is a validated analysis. Only score, summary and feedback are
// guaranteed; the remaining fields are passed through as the model sent them.
type Result struct {
	Score        float64           `json:"score"`
	Summary      string            `json:"summary"`
	Feedback     []json.RawMessage `json:"feedback"`
	Strengths    json.RawMessage   `json:"strengths,omitempty"`
	Improvements json.RawMessage   `json:"improvements,omitempty"`
	Sections     json.RawMessage   `json:"sections,omitempty"`

	// Extra holds top-level fields outside the known set, verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

var resultKeys = map[string]bool{
	"score":        true,
	"summary":      true,
	"feedback":     true,
	"strengths":    true,
	"improvements": true,
	"sections":     true,
}

// unknownFields returns the members of obj that Result has no field for.
func unknownFields(obj map[string]json.RawMessage) map[string]json.RawMessage {
	var extra map[string]json.RawMessage
	for k, v := range obj {
		if resultKeys[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra
}

// withExtra flattens extra into the JSON object body encodes to.
// Keys body already sets win.
func withExtra(body any, extra map[string]json.RawMessage) any {
	if len(extra) == 0 {
		return body
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return body
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &merged); err != nil {
		return body
	}
	for k, v := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return merged
}

// FeedbackStrings returns the feedback entries that are plain strings.
func (r Result) FeedbackStrings() []string {
	return stringsOf(r.Feedback)
}

// StrengthStrings returns strengths when the model sent a string array.
func (r Result) StrengthStrings() []string {
	var items []json.RawMessage
	if json.Unmarshal(r.Strengths, &items) != nil {
		return nil
	}
	return stringsOf(items)
}

// ImprovementStrings returns improvements when the model sent a string array.
func (r Result) ImprovementStrings() []string {
	var items []json.RawMessage
	if json.Unmarshal(r.Improvements, &items) != nil {
		return nil
	}
	return stringsOf(items)
}

// DecodeSections decodes the sections object best-effort. Fields with an
// unexpected shape are an error; absent sections return nil.
func (r Result) DecodeSections() (*Sections, error) {
	if len(r.Sections) == 0 || string(r.Sections) == "null" {
		return nil, nil
	}
	var s Sections
	if err := json.Unmarshal(r.Sections, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func stringsOf(items []json.RawMessage) []string {
	out := make([]string, 0, len(items))
	for _, raw := range items {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

// Grade maps a 0-100 score to a letter.
func Grade(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	default:
		return "D"
	}
}

// Sections is the detailed breakdown the analysis prompt asks for.
type Sections struct {
	DocumentSynopsis   *DocumentSynopsis   `json:"documentSynopsis,omitempty"`
	DataIdentification *DataIdentification `json:"dataIdentification,omitempty"`
	LexicalAnalysis    *LexicalAnalysis    `json:"lexicalAnalysis,omitempty"`
	SemanticAnalysis   *SemanticAnalysis   `json:"semanticAnalysis,omitempty"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Valued struct {
	Value   any    `json:"value"`
	Message string `json:"message"`
}

type Detection struct {
	Detected bool   `json:"detected"`
	Value    string `json:"value,omitempty"`
	Message  string `json:"message"`
}

type Counted struct {
	Count    int      `json:"count"`
	Examples []string `json:"examples,omitempty"`
	List     []string `json:"list,omitempty"`
	Message  string   `json:"message"`
}

type Rated struct {
	Score   float64 `json:"score"`
	Message string  `json:"message"`
}

type DocumentSynopsis struct {
	Score         float64 `json:"score"`
	ATSCompliance *Check  `json:"atsCompliance,omitempty"`
	FileType      *Valued `json:"fileType,omitempty"`
	FileSize      *Valued `json:"fileSize,omitempty"`
	PageCount     *Valued `json:"pageCount,omitempty"`
	WordCount     *Valued `json:"wordCount,omitempty"`
}

type DataIdentification struct {
	Score          float64    `json:"score"`
	PhoneNumber    *Detection `json:"phoneNumber,omitempty"`
	Email          *Detection `json:"email,omitempty"`
	LinkedIn       *Detection `json:"linkedIn,omitempty"`
	Education      *Detection `json:"education,omitempty"`
	WorkHistory    *Detection `json:"workHistory,omitempty"`
	Skills         *Detection `json:"skills,omitempty"`
	DateFormatting *Check     `json:"dateFormatting,omitempty"`
}

type LexicalAnalysis struct {
	Score            float64  `json:"score"`
	PersonalPronouns *Counted `json:"personalPronouns,omitempty"`
	NumericizedData  *Check   `json:"numericizedData,omitempty"`
	VocabularyLevel  *Rated   `json:"vocabularyLevel,omitempty"`
	ReadingLevel     *Rated   `json:"readingLevel,omitempty"`
	CommonWords      []string `json:"commonWords,omitempty"`
}

type SemanticAnalysis struct {
	Score                  float64  `json:"score"`
	MeasurableAchievements *Counted `json:"measurableAchievements,omitempty"`
	SoftSkills             *Counted `json:"softSkills,omitempty"`
	HardSkills             *Counted `json:"hardSkills,omitempty"`
	SkillsEfficiencyRatio  *Valued  `json:"skillsEfficiencyRatio,omitempty"`
}

// Record is a persisted analysis row.
type Record struct {
	ID        string
	UserID    string
	Content   string
	Metadata  Metadata
	CreatedAt time.Time
}

// Metadata is the JSON document stored alongside the extracted text.
type Metadata struct {
	Score        float64                    `json:"score"`
	Grade        string                     `json:"grade"`
	Summary      string                     `json:"summary"`
	Strengths    json.RawMessage            `json:"strengths"`
	Improvements json.RawMessage            `json:"improvements"`
	Feedback     []json.RawMessage          `json:"feedback"`
	Sections     json.RawMessage            `json:"sections"`
	JobDesc      *string                    `json:"jobDesc"`
	Filename     string                     `json:"filename"`
	AnalyzedAt   time.Time                  `json:"analyzedAt"`
	PayloadKind  PayloadKind                `json:"payloadKind"`
	Model        string                     `json:"model"`
	Extraction   *extract.Outcome           `json:"extraction,omitempty"`
	ArchiveKey   string                     `json:"archiveKey,omitempty"`
	Extra        map[string]json.RawMessage `json:"extra,omitempty"`
}

// Result rebuilds the analysis result from stored metadata.
func (m Metadata) Result() Result {
	return Result{
		Score:        m.Score,
		Summary:      m.Summary,
		Feedback:     m.Feedback,
		Strengths:    m.Strengths,
		Improvements: m.Improvements,
		Sections:     m.Sections,
		Extra:        m.Extra,
	}
}

var (
	emptyArray  = json.RawMessage(`[]`)
	emptyObject = json.RawMessage(`{}`)
)

func orDefault(raw, def json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return def
	}
	return raw
}
