package domain

import (
	"encoding/json"
	"time"
)

// Core domain models. HTTP payloads and stored documents share the JSON
// field names declared here, so a Record key is always a Candidate json tag.

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

type EnrichmentStatus string

const (
	EnrichmentPending    EnrichmentStatus = "pending"
	EnrichmentInProgress EnrichmentStatus = "in_progress"
	EnrichmentCompleted  EnrichmentStatus = "completed"
	EnrichmentFailed     EnrichmentStatus = "failed"
)

// MatchedBy names the identity tier that resolved an incoming record.
type MatchedBy string

const (
	MatchedByEmailAndLinkedIn MatchedBy = "email_and_linkedin"
	MatchedByEmail            MatchedBy = "email"
	MatchedByLinkedIn         MatchedBy = "linkedin"
)

type Candidate struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenantId"`
	Email          string `json:"email,omitempty"`
	AlternateEmail string `json:"alternateEmail,omitempty"`
	LinkedinURL    string `json:"linkedinUrl,omitempty"`

	Name     string `json:"name,omitempty"`
	Title    string `json:"title,omitempty"`
	Company  string `json:"company,omitempty"`
	Location string `json:"location,omitempty"`
	Summary  string `json:"summary,omitempty"`

	Skills         []string        `json:"skills,omitempty"`
	Experience     []Experience    `json:"experience,omitempty"`
	Education      []Education     `json:"education,omitempty"`
	Certifications []Certification `json:"certifications,omitempty"`
	Languages      []string        `json:"languages,omitempty"`

	LinkedinHeadline    string     `json:"linkedinHeadline,omitempty"`
	LinkedinSummary     string     `json:"linkedinSummary,omitempty"`
	LinkedinConnections int        `json:"linkedinConnections,omitempty"`
	LinkedinLastActive  *time.Time `json:"linkedinLastActive,omitempty"`
	LinkedinNotes       string     `json:"linkedinNotes,omitempty"`
	OpenToWork          bool       `json:"openToWork,omitempty"`

	OpenToWorkScore         float64  `json:"openToWorkScore"`
	JobStabilityScore       float64  `json:"jobStabilityScore"`
	PlatformEngagementScore float64  `json:"platformEngagementScore"`
	SkillMatchScore         float64  `json:"skillMatchScore"`
	Priority                Priority `json:"priority,omitempty"`
	HireabilityScore        float64  `json:"hireabilityScore"`
	AISummary               string   `json:"aiSummary,omitempty"`

	EnrichmentStatus EnrichmentStatus `json:"enrichmentStatus,omitempty"`
	LastEnriched     *time.Time       `json:"lastEnriched,omitempty"`
	EnrichedData     map[string]any   `json:"enrichedData,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type Experience struct {
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Duration    string `json:"duration,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

type Education struct {
	School    string `json:"school,omitempty"`
	Degree    string `json:"degree,omitempty"`
	Field     string `json:"field,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

type Certification struct {
	Name     string `json:"name"`
	Issuer   string `json:"issuer,omitempty"`
	IssuedAt string `json:"issuedAt,omitempty"`
}

// UnmarshalJSON accepts either an object or a bare name, since spreadsheets
// and the scraping platform disagree on the shape.
func (c *Certification) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*c = Certification{Name: name}
		return nil
	}
	type plain Certification
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*c = Certification(p)
	return nil
}

// Scores is the output of one scoring pass over a candidate.
type Scores struct {
	OpenToWork         float64  `json:"openToWorkScore"`
	JobStability       float64  `json:"jobStabilityScore"`
	PlatformEngagement float64  `json:"platformEngagementScore"`
	SkillMatch         float64  `json:"skillMatchScore"`
	Average            float64  `json:"averageScore"`
	Priority           Priority `json:"priority"`
	Hireability        float64  `json:"hireabilityScore"`
}

// Assessment is an optional model-generated opinion on a candidate.
type Assessment struct {
	Hireability float64 `json:"hireability"`
	Summary     string  `json:"summary"`
}

// Lookup carries the identifiers used to find a person, either in storage or
// on the professional network.
type Lookup struct {
	Email       string
	LinkedinURL string
	Name        string
	Company     string
}

// Drift records an identity field that changed between ingestions while the
// other identifier still matched.
type Drift struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// ProcessResult is returned for each candidate pushed through the pipeline.
type ProcessResult struct {
	CandidateID string    `json:"candidateId"`
	IsNew       bool      `json:"isNew"`
	MatchedBy   MatchedBy `json:"matchedBy,omitempty"`
	Drift       *Drift    `json:"drift,omitempty"`
	Changes     []string  `json:"changes,omitempty"`
	Enriched    bool      `json:"enriched"`
}

// BatchSummary aggregates a multi-row ingestion.
type BatchSummary struct {
	Created int             `json:"created"`
	Merged  int             `json:"merged"`
	Failed  int             `json:"failed"`
	Skipped int             `json:"skipped"`
	Results []ProcessResult `json:"results"`
	Errors  []RowError      `json:"errors,omitempty"`
}

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}
