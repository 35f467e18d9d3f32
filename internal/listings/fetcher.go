// Package listings walks the paginated listing endpoints and turns their raw
// records into jobs.Job values.
package listings

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"autoapply-backend/internal/instahyre"
	"autoapply-backend/internal/jobs"
	"autoapply-backend/internal/pacing"
	"autoapply-backend/internal/session"
	"autoapply-backend/internal/shared/telemetry"
)

const (
	DefaultPageSize = 30
	DefaultMaxPages = 50
)

var (
	ErrFetchParse     = errors.New("listing record could not be parsed")
	ErrFetchTransport = errors.New("listing page request failed")
)

// RawRecord is one element of a page's records array, as raw JSON.
type RawRecord string

// SourceSpec names an endpoint and the opaque query string forwarded with
// every page request.
type SourceSpec struct {
	Source jobs.Source
	Path   string
	Query  string
}

// Getter is the slice of the transport the fetcher needs.
type Getter interface {
	Get(ctx context.Context, path, rawQuery string, headers http.Header) (instahyre.Response, error)
}

// Fetcher walks one source page by page.
type Fetcher struct {
	Client   Getter
	PageSize int
	MaxPages int
	// Pacing is waited on before every page after the first.
	Pacing pacing.Policy
}

type cursor struct {
	offset int
	limit  int
	pages  int
}

// Fetch returns every record the source yields. On a transport failure it
// returns the records from earlier pages together with an ErrFetchTransport.
func (f *Fetcher) Fetch(ctx context.Context, spec SourceSpec, h *session.Handle) ([]RawRecord, error) {
	limit := f.PageSize
	if limit <= 0 {
		limit = DefaultPageSize
	}
	maxPages := f.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var (
		out     []RawRecord
		headers = h.Headers()
		cur     = cursor{limit: limit}
		source  = spec.Source.String()
	)

	for cur.pages < maxPages {
		if cur.pages > 0 && f.Pacing != nil {
			if err := f.Pacing.Wait(ctx); err != nil && ctx.Err() == nil {
				telemetry.Warn("listings.pacing.failed", map[string]any{"source": source, "error": err})
			}
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		resp, err := f.Client.Get(ctx, spec.Path, pageQuery(spec.Query, cur), headers)
		cur.pages++
		if err != nil {
			telemetry.Warn("listings.page.transport_error", map[string]any{
				"source": source, "offset": cur.offset, "error": err,
			})
			return out, errors.Mark(errors.Wrapf(err, "%s page at offset %d", source, cur.offset), ErrFetchTransport)
		}
		if !resp.OK() {
			telemetry.Warn("listings.page.bad_status", map[string]any{
				"source": source, "offset": cur.offset, "status": resp.Status,
			})
			return out, errors.Wrapf(ErrFetchTransport, "%s page at offset %d returned status %d", source, cur.offset, resp.Status)
		}

		page, ok := parsePage(resp.Body)
		if !ok || len(page.records) == 0 {
			telemetry.Debug("listings.page.empty", map[string]any{"source": source, "offset": cur.offset})
			break
		}

		kept := 0
		for i, rec := range page.records {
			if !rec.IsObject() {
				telemetry.Warn("listings.record.parse_failed", map[string]any{
					"source": source, "offset": cur.offset, "index": i,
					"error": errors.Wrapf(ErrFetchParse, "record type %s", rec.Type),
				})
				continue
			}
			out = append(out, RawRecord(rec.Raw))
			kept++
		}
		telemetry.Info("listings.page.fetched", map[string]any{
			"source": source, "offset": cur.offset, "records": len(page.records), "kept": kept,
		})

		cur.offset += cur.limit
		if !page.hasMore(cur) {
			break
		}
	}

	if cur.pages >= maxPages {
		telemetry.Warn("listings.page.ceiling_reached", map[string]any{"source": source, "pages": cur.pages})
	}
	return out, nil
}

type page struct {
	records []gjson.Result
	count   gjson.Result
	next    gjson.Result
}

// hasMore applies the stop rules in priority order: a total count wins over a
// next link, which wins over the short-page heuristic.
func (p page) hasMore(cur cursor) bool {
	if p.count.Exists() && p.count.Type == gjson.Number {
		return cur.offset < int(p.count.Int())
	}
	if p.next.Exists() && p.next.Type == gjson.String && strings.TrimSpace(p.next.Str) != "" {
		return true
	}
	return len(p.records) >= cur.limit
}

func parsePage(body []byte) (page, bool) {
	if !gjson.ValidBytes(body) {
		return page{}, false
	}
	root := gjson.ParseBytes(body)

	// The first non-null field decides; a malformed one ends the walk.
	records := firstExisting(root, "results", "objects")
	if !records.IsArray() {
		return page{}, false
	}

	p := page{records: records.Array()}
	p.count = firstExisting(root, "count", "meta.total_count")
	p.next = firstExisting(root, "next", "meta.next")
	return p, true
}

func firstExisting(root gjson.Result, paths ...string) gjson.Result {
	for _, path := range paths {
		if r := root.Get(path); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func pageQuery(passThrough string, cur cursor) string {
	q := "limit=" + strconv.Itoa(cur.limit) + "&offset=" + strconv.Itoa(cur.offset)
	passThrough = strings.Trim(strings.TrimSpace(passThrough), "?&")
	if passThrough == "" {
		return q
	}
	return passThrough + "&" + q
}
