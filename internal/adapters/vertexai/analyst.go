// Package vertexai asks a Gemini model on Vertex AI for a hireability
// assessment of a candidate.
package vertexai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
)

// generator is the part of the model the analyst needs.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Analyst struct {
	gen    generator
	client *genai.Client
}

var _ ports.Analyst = (*Analyst)(nil)

// New connects to Vertex AI. location defaults to us-central1.
func New(ctx context.Context, projectID, location, model string) (*Analyst, error) {
	if projectID == "" {
		return nil, errors.New("vertexai: project id not set")
	}
	if location == "" {
		location = "us-central1"
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("vertexai: create client: %w", err)
	}
	m := client.GenerativeModel(model)
	m.SetTemperature(0.2)
	m.SetTopK(40)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(1024)
	return &Analyst{gen: modelGenerator{m}, client: client}, nil
}

func (a *Analyst) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

// Assess returns a 0-100 hireability score and a short summary.
func (a *Analyst) Assess(ctx context.Context, c domain.Candidate) (domain.Assessment, error) {
	text, err := a.gen.Generate(ctx, buildPrompt(c))
	if err != nil {
		return domain.Assessment{}, err
	}
	return parseAssessment(text)
}

type modelGenerator struct {
	model *genai.GenerativeModel
}

func (g modelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("vertexai: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("vertexai: no response candidates returned")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

func buildPrompt(c domain.Candidate) string {
	var b strings.Builder
	b.WriteString("You are assisting a recruiter. Assess how hireable this candidate is right now.\n")
	b.WriteString("Respond with JSON only: {\"hireabilityScore\": <0-100>, \"summary\": \"<two sentences>\"}\n\n")
	field := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, strings.ToValidUTF8(v, ""))
		}
	}
	field("Name", c.Name)
	field("Title", c.Title)
	field("Company", c.Company)
	field("Location", c.Location)
	field("Headline", c.LinkedinHeadline)
	field("Summary", c.Summary)
	field("LinkedIn summary", c.LinkedinSummary)
	field("Skills", strings.Join(c.Skills, ", "))
	for _, e := range c.Experience {
		field("Experience", strings.Join(nonEmpty(e.Title, e.Company, e.Duration), " | "))
	}
	if c.OpenToWork {
		field("Open to work", "yes")
	}
	fmt.Fprintf(&b, "Heuristic scores (0-10): open to work %.1f, stability %.1f, engagement %.1f, skills %.1f\n",
		c.OpenToWorkScore, c.JobStabilityScore, c.PlatformEngagementScore, c.SkillMatchScore)
	return b.String()
}

// parseAssessment reads the JSON object between the first '{' and the last
// '}' of the model's reply.
func parseAssessment(text string) (domain.Assessment, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return domain.Assessment{}, fmt.Errorf("vertexai: no JSON object in response %q", truncate(text, 120))
	}
	var out struct {
		Hireability *float64 `json:"hireabilityScore"`
		Summary     string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return domain.Assessment{}, fmt.Errorf("vertexai: decode assessment: %w", err)
	}
	if out.Hireability == nil {
		return domain.Assessment{}, errors.New("vertexai: response has no hireabilityScore")
	}
	return domain.Assessment{
		Hireability: math.Max(0, math.Min(100, *out.Hireability)),
		Summary:     strings.TrimSpace(out.Summary),
	}, nil
}

func nonEmpty(vs ...string) []string {
	var out []string
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
