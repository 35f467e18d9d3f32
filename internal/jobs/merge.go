package jobs

// Merge combines both sources into one insertion-ordered, key-unique list.
// Opportunity entries win on key collision; job-search entries only fill keys
// not already present. Jobs without a key are dropped.
func Merge(opportunity, jobSearch []Job) []Job {
	index := make(map[string]int, len(opportunity)+len(jobSearch))
	out := make([]Job, 0, len(opportunity)+len(jobSearch))

	for _, j := range opportunity {
		key := j.Key()
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i] = j
			continue
		}
		index[key] = len(out)
		out = append(out, j)
	}

	for _, j := range jobSearch {
		key := j.Key()
		if key == "" {
			continue
		}
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(out)
		out = append(out, j)
	}

	return out
}
