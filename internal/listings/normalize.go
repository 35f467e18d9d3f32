package listings

import (
	"strings"

	"github.com/tidwall/gjson"

	"autoapply-backend/internal/jobs"
)

// shape describes where a listing keeps its fields. Records arrive either
// flat or with the posting nested under "job".
type shape struct {
	name     string
	id       []string
	company  []string
	title    []string
	keywords []string
}

var (
	opportunityShape = shape{
		name:     "opportunity",
		id:       []string{"id"},
		company:  []string{"employer.company_name"},
		title:    []string{"title", "job.candidate_title"},
		keywords: []string{"keywords", "job.keywords"},
	}
	nestedJobShape = shape{
		name:     "nested",
		id:       []string{"job.id"},
		company:  []string{"job.employer.company_name", "job.company_name", "employer.company_name"},
		title:    []string{"job.title", "job.candidate_title"},
		keywords: []string{"job.keywords"},
	}
	flatJobShape = shape{
		name:     "flat",
		id:       []string{"id"},
		company:  []string{"employer.company_name", "company_name"},
		title:    []string{"title", "candidate_title"},
		keywords: []string{"keywords"},
	}
)

// Normalize converts a raw record into a job. It reports false when the
// record lacks an id, a company or a title.
func Normalize(raw RawRecord, source jobs.Source) (jobs.Job, bool) {
	if !gjson.Valid(string(raw)) {
		return jobs.Job{}, false
	}
	root := gjson.Parse(string(raw))
	if !root.IsObject() {
		return jobs.Job{}, false
	}

	switch source {
	case jobs.SourceOpportunity:
		return probe(root, opportunityShape, source)
	case jobs.SourceJobSearch:
		if root.Get("job").IsObject() {
			if job, ok := probe(root, nestedJobShape, source); ok {
				return job, true
			}
		}
		return probe(root, flatJobShape, source)
	default:
		return jobs.Job{}, false
	}
}

func probe(root gjson.Result, s shape, source jobs.Source) (jobs.Job, bool) {
	id := firstScalar(root, s.id)
	company := firstScalar(root, s.company)
	title := firstScalar(root, s.title)
	if id == "" || company == "" || title == "" {
		return jobs.Job{}, false
	}

	job := jobs.Job{
		Title:   company + " - " + title,
		Company: company,
		Skills:  keywords(root, s.keywords),
		Source:  source,
	}
	if source == jobs.SourceOpportunity {
		job.PrimaryID = id
	} else {
		job.SecondaryID = id
	}
	return job, true
}

func firstScalar(root gjson.Result, paths []string) string {
	for _, path := range paths {
		r := root.Get(path)
		switch r.Type {
		case gjson.String, gjson.Number:
			if v := strings.TrimSpace(r.String()); v != "" {
				return v
			}
		}
	}
	return ""
}

func keywords(root gjson.Result, paths []string) []string {
	for _, path := range paths {
		r := root.Get(path)
		if !r.IsArray() {
			continue
		}
		out := []string{}
		for _, kw := range r.Array() {
			// Keywords are either plain strings or {"name": ...} objects.
			v := kw.String()
			if kw.IsObject() {
				v = kw.Get("name").String()
			}
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	return []string{}
}

// NormalizeAll normalizes records in order, dropping the ones that fail.
func NormalizeAll(records []RawRecord, source jobs.Source) []jobs.Job {
	out := make([]jobs.Job, 0, len(records))
	for _, rec := range records {
		if job, ok := Normalize(rec, source); ok {
			out = append(out, job)
		}
	}
	return out
}
