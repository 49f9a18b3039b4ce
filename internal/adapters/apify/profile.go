package apify

import (
	"strings"

	"recruitpipe/internal/domain"
)

// profileItem is one dataset item of the LinkedIn profile actor. Only the
// fields the pipeline uses are declared.
type profileItem struct {
	FullName    string `json:"fullName"`
	Headline    string `json:"headline"`
	About       string `json:"about"`
	JobTitle    string `json:"jobTitle"`
	CompanyName string `json:"companyName"`
	Location    string `json:"addressWithCountry"`
	Connections int    `json:"connections"`
	OpenToWork  bool   `json:"openToWork"`
	LastActive  string `json:"lastActivity"`

	Skills []struct {
		Title string `json:"title"`
	} `json:"skills"`
	Experiences []struct {
		Title       string `json:"title"`
		CompanyName string `json:"companyName"`
		Duration    string `json:"jobDuration"`
		StartedOn   string `json:"jobStartedOn"`
		EndedOn     string `json:"jobEndedOn"`
		Description string `json:"jobDescription"`
	} `json:"experiences"`
	Educations []struct {
		School    string `json:"title"`
		Degree    string `json:"subtitle"`
		Field     string `json:"fieldOfStudy"`
		StartedOn string `json:"startedOn"`
		EndedOn   string `json:"endedOn"`
	} `json:"educations"`
	Certifications []struct {
		Name     string `json:"title"`
		Issuer   string `json:"subtitle"`
		IssuedAt string `json:"issuedOn"`
	} `json:"licenseAndCertificates"`
	Languages []struct {
		Name string `json:"name"`
	} `json:"languages"`
}

// record maps the item onto candidate fields, leaving out anything empty.
// Identity fields are not taken from the vendor.
func (p profileItem) record() domain.Record {
	rec := domain.Record{}
	set := func(key, v string) {
		if v = strings.TrimSpace(v); v != "" {
			rec[key] = v
		}
	}
	set("name", p.FullName)
	set("linkedinHeadline", p.Headline)
	set("linkedinSummary", p.About)
	set("title", p.JobTitle)
	set("company", p.CompanyName)
	set("location", p.Location)
	set("linkedinLastActive", p.LastActive)
	if p.Connections > 0 {
		rec["linkedinConnections"] = float64(p.Connections)
	}
	if p.OpenToWork {
		rec["openToWork"] = true
	}

	var skills []any
	for _, s := range p.Skills {
		if t := strings.TrimSpace(s.Title); t != "" {
			skills = append(skills, t)
		}
	}
	if len(skills) > 0 {
		rec["skills"] = skills
	}

	var exp []any
	for _, e := range p.Experiences {
		exp = append(exp, compact(map[string]any{
			"title":       e.Title,
			"company":     e.CompanyName,
			"duration":    e.Duration,
			"startDate":   e.StartedOn,
			"endDate":     e.EndedOn,
			"description": e.Description,
		}))
	}
	if len(exp) > 0 {
		rec["experience"] = exp
	}

	var edu []any
	for _, e := range p.Educations {
		edu = append(edu, compact(map[string]any{
			"school":    e.School,
			"degree":    e.Degree,
			"field":     e.Field,
			"startDate": e.StartedOn,
			"endDate":   e.EndedOn,
		}))
	}
	if len(edu) > 0 {
		rec["education"] = edu
	}

	var certs []any
	for _, c := range p.Certifications {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		certs = append(certs, compact(map[string]any{
			"name":     c.Name,
			"issuer":   c.Issuer,
			"issuedAt": c.IssuedAt,
		}))
	}
	if len(certs) > 0 {
		rec["certifications"] = certs
	}

	var langs []any
	for _, l := range p.Languages {
		if n := strings.TrimSpace(l.Name); n != "" {
			langs = append(langs, n)
		}
	}
	if len(langs) > 0 {
		rec["languages"] = langs
	}
	return rec
}

func compact(m map[string]any) map[string]any {
	for k, v := range m {
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			delete(m, k)
		}
	}
	return m
}
