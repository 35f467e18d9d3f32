package autoapply

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"autoapply-backend/internal/applies"
	"autoapply-backend/internal/instahyre"
	"autoapply-backend/internal/jobs"
	"autoapply-backend/internal/listings"
	"autoapply-backend/internal/pacing"
	"autoapply-backend/internal/runs"
	"autoapply-backend/internal/session"
)

// fakeSite imitates the recruiting site's verify, listing and apply endpoints.
type fakeSite struct {
	mu            sync.Mutex
	session       string
	opportunities string
	jobSearch     string
	applyStatus   func(payload map[string]any) (int, string)
	applied       []map[string]any
	listingCalls  int
}

func (f *fakeSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(instahyre.VerifyPath, func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sessionid"); err != nil || c.Value != f.session {
			http.Redirect(w, r, "/login/?next="+instahyre.VerifyPath, http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(instahyre.OpportunityPath, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.listingCalls++
		f.mu.Unlock()
		if r.URL.Query().Get("offset") != "0" {
			_, _ = w.Write([]byte(`{"results":[]}`))
			return
		}
		_, _ = w.Write([]byte(f.opportunities))
	})
	mux.HandleFunc(instahyre.JobSearchPath, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.listingCalls++
		f.mu.Unlock()
		if r.URL.Query().Get("offset") != "0" {
			_, _ = w.Write([]byte(`{"objects":[]}`))
			return
		}
		_, _ = w.Write([]byte(f.jobSearch))
	})
	mux.HandleFunc(instahyre.ApplyPath, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.applied = append(f.applied, payload)
		f.mu.Unlock()
		status, body := http.StatusOK, `{"success":true}`
		if f.applyStatus != nil {
			status, body = f.applyStatus(payload)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	return mux
}

func (f *fakeSite) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

type testEnv struct {
	svc         *Service
	site        *fakeSite
	pagePacing  *pacing.Recorder
	applyPacing *pacing.Recorder
	ledger      *applies.MemoryLedger
	runs        *runs.MemoryRepo
}

func newTestEnv(t *testing.T, site *fakeSite) *testEnv {
	t.Helper()
	srv := httptest.NewServer(site.handler())
	t.Cleanup(srv.Close)

	client, err := instahyre.NewClient(instahyre.Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	env := &testEnv{
		site:        site,
		pagePacing:  &pacing.Recorder{},
		applyPacing: &pacing.Recorder{},
		ledger:      applies.NewMemoryLedger(),
		runs:        runs.NewMemoryRepo(10),
	}
	ids := 0
	env.svc = &Service{
		Auth:        session.NewAuthenticator(session.NewStore(), client),
		Credentials: session.Credentials{SessionToken: "good", CSRFToken: "csrf"},
		Fetcher:     &listings.Fetcher{Client: client, Pacing: env.pagePacing},
		Sources: Sources{
			Opportunity:        listings.SourceSpec{Source: jobs.SourceOpportunity, Path: instahyre.OpportunityPath},
			JobSearch:          listings.SourceSpec{Source: jobs.SourceJobSearch, Path: instahyre.JobSearchPath, Query: "skills=java"},
			OpportunityEnabled: true,
			JobSearchEnabled:   true,
		},
		Keywords:    []string{"java", "kafka"},
		Poster:      client,
		ApplyPacing: env.applyPacing,
		Ledger:      env.ledger,
		Runs:        env.runs,
		NewID: func() string {
			ids++
			return fmt.Sprintf("run-%d", ids)
		},
	}
	return env
}

func opportunityJSON(id, company, title string, skills ...string) string {
	kw, _ := json.Marshal(skills)
	return `{"id":"` + id + `","employer":{"company_name":"` + company + `"},"title":"` + title + `","keywords":` + string(kw) + `}`
}

func jobSearchJSON(id int, company, title string, skills ...string) string {
	kw, _ := json.Marshal(skills)
	idJSON, _ := json.Marshal(id)
	return `{"job":{"id":` + string(idJSON) + `,"employer":{"company_name":"` + company + `"},"title":"` + title + `","keywords":` + string(kw) + `}}`
}

func page(key string, records ...string) string {
	return `{"` + key + `":[` + strings.Join(records, ",") + `]}`
}
