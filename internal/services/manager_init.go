package services

import (
	"context"
	"fmt"
	"net/http"

	"forumsearch/internal/core/pubsub"
	"forumsearch/internal/core/pubsub/memory"
	natspubsub "forumsearch/internal/core/pubsub/nats"
	"forumsearch/internal/events"
	"forumsearch/internal/gateway/rest"
	"forumsearch/internal/indexer"
	"forumsearch/internal/indexer/rebuild"
	"forumsearch/internal/question"
	questionmongo "forumsearch/internal/question/mongo"
	searchelastic "forumsearch/internal/search/elastic"
	"forumsearch/internal/search/query"
)

// Init connects to the external systems and builds every component the
// selected roles need.
func (m *Manager) Init(ctx context.Context) error {
	store, err := questionmongo.NewStore(ctx,
		m.cfg.Mongo.URI, m.cfg.Mongo.Database, m.cfg.Mongo.Questions, m.cfg.Mongo.Answers)
	if err != nil {
		return fmt.Errorf("connect to question store: %w", err)
	}
	m.store = store

	engine, err := searchelastic.NewEngine(m.cfg.Elastic, m.logger)
	if err != nil {
		return fmt.Errorf("connect to search engine: %w", err)
	}
	m.engine = engine

	if err := m.initBroker(ctx); err != nil {
		return err
	}

	alias := m.cfg.Index.BaseName
	m.orchestrator = rebuild.New(m.cfg.Rebuild, m.store, m.engine, alias, m.logger)
	m.querySvc = query.NewService(m.engine, alias, m.logger)

	publisher, err := m.broker.NewPublisher(pubsub.PublisherOptions{
		StreamName:    m.cfg.Broker.Stream,
		SubjectPrefix: m.cfg.Broker.Stream,
	})
	if err != nil {
		return fmt.Errorf("create change publisher: %w", err)
	}
	m.writeSvc = question.NewService(m.store, publisher, m.logger)

	if m.opts.RunIndexer {
		consumer, err := m.broker.NewConsumer(pubsub.ConsumerOptions{
			StreamName:     m.cfg.Broker.Stream,
			ConsumerName:   m.cfg.Indexer.ConsumerName,
			FilterSubject:  m.cfg.Broker.Stream + ".changes." + events.EntityQuestion + ".>",
			ChannelBufSize: m.cfg.Indexer.ChannelBufSize,
		})
		if err != nil {
			return fmt.Errorf("create change consumer: %w", err)
		}
		m.indexerSvc = indexer.NewService(consumer, m.store, m.engine, alias, m.cfg.Indexer, m.logger)
	}

	if m.opts.RunAPI {
		handler := rest.NewHandler(m.querySvc, m.orchestrator, m.cfg.Admin.JWTSecret, m.logger)
		mux := http.NewServeMux()
		handler.RegisterRoutes(mux)
		m.httpServer = &http.Server{
			Addr:    m.cfg.HTTP.Addr,
			Handler: mux,
		}
	}

	return nil
}

func (m *Manager) initBroker(ctx context.Context) error {
	switch m.cfg.Broker.Kind {
	case "memory":
		m.broker = memory.New()
	case "nats":
		provider := natspubsub.NewProvider(m.cfg.Broker.URL)
		if err := provider.Connect(ctx); err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		m.broker = provider
	default:
		return fmt.Errorf("unknown broker kind %q", m.cfg.Broker.Kind)
	}
	return nil
}
