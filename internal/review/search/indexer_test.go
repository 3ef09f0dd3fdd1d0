package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"foundation-review/internal/common/logger"
	"foundation-review/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test transport
// ==========================

type recordedRequest struct {
	method string
	path   string
	body   string
}

// stubTransport answers Elasticsearch calls without a cluster.
type stubTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(r *http.Request) (int, string)
}

func (s *stubTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	var body string
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
	}
	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{r.Method, r.URL.Path, body})
	s.mu.Unlock()

	status, payload := 200, `{}`
	if s.respond != nil {
		status, payload = s.respond(r)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(payload)),
		Request:    r,
	}, nil
}

func newTestIndexer(t *testing.T, transport *stubTransport) *Indexer {
	t.Helper()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: transport,
	})
	require.NoError(t, err)
	return NewIndexer(client, "applications", logger.NewTestLogger(t))
}

func sampleApplication() *models.Application {
	submitted := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return &models.Application{
		ID:          "app-1",
		ApplicantID: "applicant-1",
		Status:      models.StatusUnderReview,
		CreatedAt:   submitted.Add(-time.Hour),
		SubmittedAt: &submitted,
		Content: models.ApplicationContent{
			FirstName:              "Ada",
			LastName:               "Lovelace",
			FundingType:            "Monthly",
			RequestedMonthlyAmount: 1200,
			PersonalStatement:      "I care for my family.",
		},
	}
}

// ==========================
// Tests
// ==========================

func TestIndexApplication(t *testing.T) {
	tr := &stubTransport{}
	ix := newTestIndexer(t, tr)

	require.NoError(t, ix.IndexApplication(context.Background(), sampleApplication()))

	require.Len(t, tr.requests, 1)
	req := tr.requests[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/applications/_doc/app-1", req.path)

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(req.body), &doc))
	assert.Equal(t, "Ada Lovelace", doc.ApplicantName)
	assert.Equal(t, models.StatusUnderReview, doc.Status)
	assert.Equal(t, 1200.0, doc.RequestedMonthlyAmount)
}

func TestIndexApplication_ClusterError(t *testing.T) {
	tr := &stubTransport{respond: func(*http.Request) (int, string) {
		return 500, `{"error":{"type":"illegal_state_exception"}}`
	}}
	ix := newTestIndexer(t, tr)

	err := ix.IndexApplication(context.Background(), sampleApplication())
	assert.True(t, errors.Is(err, ErrSearchFailed))
}

func TestSearch(t *testing.T) {
	tr := &stubTransport{respond: func(*http.Request) (int, string) {
		return 200, `{"hits":{"total":{"value":1},"hits":[{"_source":{"id":"app-1","status":"UnderReview","applicantName":"Ada Lovelace"}}]}}`
	}}
	ix := newTestIndexer(t, tr)

	res, err := ix.Search(context.Background(), Query{
		Text:     "family",
		Statuses: []models.ApplicationStatus{models.StatusUnderReview, models.StatusInDiscussion},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "app-1", res.Documents[0].ID)

	require.Len(t, tr.requests, 1)
	assert.Equal(t, "/applications/_search", tr.requests[0].path)
	assert.Contains(t, tr.requests[0].body, `"terms":{"status":["UnderReview","InDiscussion"]}`)
	assert.Contains(t, tr.requests[0].body, `"query":"family"`)
}

func TestBuildQuery_MatchAllWithoutText(t *testing.T) {
	q := buildQuery(Query{})
	body, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"match_all":{}`)
}

type listSource []*models.Application

func (l listSource) ListApplicationsByStatus(context.Context, ...models.ApplicationStatus) ([]*models.Application, error) {
	return l, nil
}

func TestReindex(t *testing.T) {
	tr := &stubTransport{respond: func(r *http.Request) (int, string) {
		switch {
		case r.Method == http.MethodHead:
			return 404, ``
		case strings.HasSuffix(r.URL.Path, "/app-2"):
			return 400, `{"error":{"type":"mapper_parsing_exception"}}`
		}
		return 200, `{}`
	}}
	ix := newTestIndexer(t, tr)

	first := sampleApplication()
	second := sampleApplication()
	second.ID = "app-2"

	n, err := ix.Reindex(context.Background(), listSource{first, second})
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 applications not indexed")

	// HEAD, index creation, then one PUT per document
	require.Len(t, tr.requests, 4)
	assert.Equal(t, http.MethodPut, tr.requests[1].method)
	assert.Equal(t, "/applications", tr.requests[1].path)
	assert.Contains(t, tr.requests[1].body, `"mappings"`)
}
