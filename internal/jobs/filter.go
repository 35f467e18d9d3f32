package jobs

import "strings"

// Matches reports whether any of the job's skill tags contains any keyword,
// ignoring case. An empty skill list or keyword list never matches.
func Matches(job Job, keywords []string) bool {
	return len(MatchedSkills(job, keywords)) > 0
}

// MatchedSkills returns the skill tags that contain at least one keyword.
func MatchedSkills(job Job, keywords []string) []string {
	if len(job.Skills) == 0 || len(keywords) == 0 {
		return nil
	}

	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		lowered = append(lowered, kw)
	}
	if len(lowered) == 0 {
		return nil
	}

	var matched []string
	for _, skill := range job.Skills {
		s := strings.ToLower(skill)
		for _, kw := range lowered {
			if strings.Contains(s, kw) {
				matched = append(matched, skill)
				break
			}
		}
	}
	return matched
}

// Filter keeps the jobs that match, preserving order.
func Filter(list []Job, keywords []string) []Job {
	out := make([]Job, 0, len(list))
	for _, j := range list {
		if Matches(j, keywords) {
			out = append(out, j)
		}
	}
	return out
}
