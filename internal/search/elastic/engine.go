// Package elastic implements the search engine contract on Elasticsearch
// using the olivere client.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/olivere/elastic/v7"

	"forumsearch/internal/config"
	"forumsearch/internal/search"
)

const questionMapping = `{
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 1
	},
	"mappings": {
		"properties": {
			"id":          {"type": "keyword"},
			"title":       {"type": "text"},
			"body":        {"type": "text"},
			"href":        {"type": "keyword", "index": false},
			"author": {
				"properties": {
					"id":          {"type": "keyword"},
					"displayName": {"type": "keyword"}
				}
			},
			"category": {
				"properties": {
					"id":    {"type": "keyword"},
					"title": {"type": "keyword"},
					"href":  {"type": "keyword", "index": false}
				}
			},
			"answerCount": {"type": "integer"},
			"createdAt":   {"type": "date"}
		}
	}
}`

var _ search.Engine = (*Engine)(nil)

// Engine talks to an Elasticsearch cluster.
type Engine struct {
	client  *elastic.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine connects to the cluster described by cfg.
func NewEngine(cfg config.ElasticConfig, logger *slog.Logger) (*Engine, error) {
	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.URL),
		elastic.SetSniff(false),
		elastic.SetRetrier(elastic.NewBackoffRetrier(
			elastic.NewExponentialBackoff(100*time.Millisecond, 5*time.Second))),
	}
	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}
	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to elasticsearch at %s: %w", cfg.URL, err)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Engine{
		client:  client,
		timeout: timeout,
		logger:  logger.With("component", "elastic"),
	}, nil
}

func (e *Engine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// CreateIndex creates an empty index with the question document mapping.
func (e *Engine) CreateIndex(ctx context.Context, name string) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	resp, err := e.client.CreateIndex(name).BodyString(questionMapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	if !resp.Acknowledged {
		return fmt.Errorf("create index %s: not acknowledged", name)
	}
	return nil
}

// DeleteIndex removes an index. Deleting a missing index succeeds.
func (e *Engine) DeleteIndex(ctx context.Context, name string) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	_, err := e.client.DeleteIndex(name).Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	return nil
}

// Upsert writes one document, replacing any previous version with the same ID.
func (e *Engine) Upsert(ctx context.Context, index string, doc *search.Document) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	_, err := e.client.Index().
		Index(index).
		Id(doc.ID).
		BodyJson(doc).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// BulkUpsert writes a batch in one request. Documents rejected by the
// cluster are counted, logged, and skipped; the batch itself still succeeds.
func (e *Engine) BulkUpsert(ctx context.Context, index string, docs []*search.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	bulk := e.client.Bulk().Index(index)
	for _, doc := range docs {
		bulk.Add(elastic.NewBulkIndexRequest().Id(doc.ID).Doc(doc))
	}
	resp, err := bulk.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk upsert %d documents: %w", len(docs), err)
	}
	failed := resp.Failed()
	for _, item := range failed {
		reason := ""
		if item.Error != nil {
			reason = item.Error.Reason
		}
		e.logger.Warn("bulk item rejected", "id", item.Id, "status", item.Status, "reason", reason)
	}
	return len(failed), nil
}

// Delete removes one document. Deleting a missing document succeeds.
func (e *Engine) Delete(ctx context.Context, index string, id string) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	_, err := e.client.Delete().Index(index).Id(id).Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// SwapAlias repoints the alias in one atomic actions call. Readers see
// either the old target or the new one, never both and never neither.
func (e *Engine) SwapAlias(ctx context.Context, alias string, old []string, new string) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	svc := e.client.Alias().Action(elastic.NewAliasAddAction(alias).Index(new))
	if len(old) > 0 {
		svc = svc.Action(elastic.NewAliasRemoveAction(alias).Index(old...))
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return fmt.Errorf("swap alias %s to %s: %w", alias, new, err)
	}
	if !resp.Acknowledged {
		return fmt.Errorf("swap alias %s to %s: not acknowledged", alias, new)
	}
	return nil
}

// AliasTarget returns the indexes the alias points at, empty when the alias
// does not exist.
func (e *Engine) AliasTarget(ctx context.Context, alias string) ([]string, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	resp, err := e.client.Aliases().Index("_all").Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve alias %s: %w", alias, err)
	}
	return resp.IndicesByAlias(alias), nil
}

// Generations lists the physical indexes derived from base.
func (e *Engine) Generations(ctx context.Context, base string) ([]string, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	names, err := e.client.IndexNames()
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	var out []string
	for _, name := range names {
		if _, ok := search.GenerationTime(base, name); ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// Refresh makes all writes to the index visible to search.
func (e *Engine) Refresh(ctx context.Context, index string) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	_, err := e.client.Refresh(index).Do(ctx)
	if err != nil {
		return fmt.Errorf("refresh index %s: %w", index, err)
	}
	return nil
}

// SetRefreshInterval tunes periodic refresh. "-1" disables it for the
// duration of a bulk load.
func (e *Engine) SetRefreshInterval(ctx context.Context, index string, interval string) error {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	body := map[string]any{"index": map[string]any{"refresh_interval": interval}}
	resp, err := e.client.IndexPutSettings(index).BodyJson(body).Do(ctx)
	if err != nil {
		return fmt.Errorf("set refresh interval on %s: %w", index, err)
	}
	if !resp.Acknowledged {
		return fmt.Errorf("set refresh interval on %s: not acknowledged", index)
	}
	return nil
}

// Search runs a relevance query against the index. With text it ranks by
// score with the title boosted over the body, otherwise it browses newest
// first. A category filter narrows either mode.
func (e *Engine) Search(ctx context.Context, index string, req search.Request) (*search.Result, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()

	q := elastic.NewBoolQuery()
	if req.Text != "" {
		q.Must(elastic.NewMultiMatchQuery(req.Text, "title^3", "body").
			MinimumShouldMatch("70%"))
	} else {
		q.Must(elastic.NewMatchAllQuery())
	}
	if req.CategoryID != "" {
		q.Filter(elastic.NewTermQuery("category.id", req.CategoryID))
	}

	svc := e.client.Search(index).
		Query(q).
		From(req.Offset()).
		Size(req.PageSize)
	if req.Text != "" {
		svc = svc.Sort("_score", false)
	} else {
		svc = svc.Sort("createdAt", false)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}

	result := &search.Result{
		Documents: make([]*search.Document, 0, req.PageSize),
		Total:     resp.TotalHits(),
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if resp.Hits != nil {
		for _, hit := range resp.Hits.Hits {
			var doc search.Document
			if err := json.Unmarshal(hit.Source, &doc); err != nil {
				e.logger.Warn("undecodable hit skipped", "id", hit.Id, "error", err)
				continue
			}
			result.Documents = append(result.Documents, &doc)
		}
	}
	return result, nil
}
