// Package search maintains an Elasticsearch projection of applications for
// admin search. The relational store stays authoritative.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"foundation-review/internal/common/logger"
	"foundation-review/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrSearchFailed = errors.New("SEARCH_FAILED")

const indexMapping = `{
  "mappings": {
    "properties": {
      "id": {"type": "keyword"},
      "applicantId": {"type": "keyword"},
      "applicantName": {"type": "text"},
      "status": {"type": "keyword"},
      "finalDecision": {"type": "keyword"},
      "fundingType": {"type": "keyword"},
      "requestedMonthlyAmount": {"type": "double"},
      "approvedMonthlyAmount": {"type": "double"},
      "sponsorId": {"type": "keyword"},
      "personalStatement": {"type": "text"},
      "expectedBenefits": {"type": "text"},
      "createdAt": {"type": "date"},
      "submittedAt": {"type": "date"},
      "decisionAt": {"type": "date"}
    }
  }
}`

// Document is the indexed shape of an application.
type Document struct {
	ID                     string                   `json:"id"`
	ApplicantID            string                   `json:"applicantId"`
	ApplicantName          string                   `json:"applicantName"`
	Status                 models.ApplicationStatus `json:"status"`
	FinalDecision          models.FinalDecision     `json:"finalDecision,omitempty"`
	FundingType            string                   `json:"fundingType"`
	RequestedMonthlyAmount float64                  `json:"requestedMonthlyAmount"`
	ApprovedMonthlyAmount  *float64                 `json:"approvedMonthlyAmount,omitempty"`
	SponsorID              string                   `json:"sponsorId,omitempty"`
	PersonalStatement      string                   `json:"personalStatement"`
	ExpectedBenefits       string                   `json:"expectedBenefits"`
	CreatedAt              time.Time                `json:"createdAt"`
	SubmittedAt            *time.Time               `json:"submittedAt,omitempty"`
	DecisionAt             *time.Time               `json:"decisionAt,omitempty"`
}

func NewDocument(app *models.Application) Document {
	return Document{
		ID:                     app.ID,
		ApplicantID:            app.ApplicantID,
		ApplicantName:          strings.TrimSpace(app.Content.FirstName + " " + app.Content.LastName),
		Status:                 app.Status,
		FinalDecision:          app.FinalDecision,
		FundingType:            app.Content.FundingType,
		RequestedMonthlyAmount: app.Content.RequestedMonthlyAmount,
		ApprovedMonthlyAmount:  app.ApprovedMonthlyAmount,
		SponsorID:              app.SponsorID,
		PersonalStatement:      app.Content.PersonalStatement,
		ExpectedBenefits:       app.Content.ExpectedBenefits,
		CreatedAt:              app.CreatedAt,
		SubmittedAt:            app.SubmittedAt,
		DecisionAt:             app.DecisionAt,
	}
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": index}),
	}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (ix *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := ix.client.Indices.Exists([]string{ix.index}, ix.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = ix.client.Indices.Create(
		ix.index,
		ix.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		ix.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: create index: %s", ErrSearchFailed, res.String())
	}
	ix.logger.Info("search index created", nil)
	return nil
}

// IndexApplication upserts the application's document.
func (ix *Indexer) IndexApplication(ctx context.Context, app *models.Application) error {
	body, err := json.Marshal(NewDocument(app))
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      ix.index,
		DocumentID: app.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: index %s: %s", ErrSearchFailed, app.ID, res.String())
	}
	return nil
}

// Query filters by status and matches free text against names and statements.
type Query struct {
	Text     string
	Statuses []models.ApplicationStatus
	From     int
	Size     int
}

type Result struct {
	Total     int        `json:"total"`
	Documents []Document `json:"documents"`
}

func buildQuery(q Query) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"applicantName^3", "personalStatement", "expectedBenefits"},
				"type":   "best_fields",
			},
		})
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		filter = append(filter, map[string]interface{}{
			"terms": map[string]interface{}{"status": statuses},
		})
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc"}},
		},
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (ix *Indexer) Search(ctx context.Context, q Query) (*Result, error) {
	if q.Size <= 0 {
		q.Size = 20
	}
	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{ix.index},
		Body:  bytes.NewReader(body),
		From:  &q.From,
		Size:  &q.Size,
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.String())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}

	out := &Result{Total: parsed.Hits.Total.Value, Documents: make([]Document, 0, len(parsed.Hits.Hits))}
	for _, h := range parsed.Hits.Hits {
		out.Documents = append(out.Documents, h.Source)
	}
	return out, nil
}

// Source lists every application for a rebuild.
type Source interface {
	ListApplicationsByStatus(ctx context.Context, statuses ...models.ApplicationStatus) ([]*models.Application, error)
}

// Reindex rebuilds the projection from src and returns how many documents
// were written. It keeps going past individual failures.
func (ix *Indexer) Reindex(ctx context.Context, src Source) (int, error) {
	if err := ix.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	apps, err := src.ListApplicationsByStatus(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list applications: %w", err)
	}

	indexed := 0
	var failed []string
	for _, app := range apps {
		if err := ix.IndexApplication(ctx, app); err != nil {
			ix.logger.Warn("failed to index application", map[string]interface{}{
				"error":         err,
				"applicationId": app.ID,
			})
			failed = append(failed, app.ID)
			continue
		}
		indexed++
	}
	if len(failed) > 0 {
		return indexed, fmt.Errorf("%w: %d of %d applications not indexed", ErrSearchFailed, len(failed), len(apps))
	}
	return indexed, nil
}
