package pubsub

import (
	"context"
	"sync"

	"cloud.google.com/go/pubsub"

	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// EventPubSub publishes domain events to Google Cloud Pub/Sub.
type EventPubSub struct {
	PubSubClient *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewEventPubSub(pubSubClient *pubsub.Client) *EventPubSub {
	return &EventPubSub{PubSubClient: pubSubClient, topics: make(map[string]*pubsub.Topic)}
}

func NewClient(ctx context.Context, projectID string) (*pubsub.Client, error) {
	return pubsub.NewClient(ctx, projectID)
}

func (p *EventPubSub) topic(ctx context.Context, topicName string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[topicName]; ok {
		return t, nil
	}
	t := p.PubSubClient.Topic(topicName)
	exists, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", topicName).Info("Topic doesn't exist - creating it")
		if t, err = p.PubSubClient.CreateTopic(ctx, topicName); err != nil {
			return nil, err
		}
	}
	p.topics[topicName] = t
	return t, nil
}

func (p *EventPubSub) Publish(ctx context.Context, topicName string, payload []byte) (string, error) {
	t, err := p.topic(ctx, topicName)
	if err != nil {
		return "", err
	}
	serverID, err := t.Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
	if err != nil {
		return "", err
	}
	logger.GetLogger().WithField("server ID", serverID).Debug("Event published")
	return serverID, nil
}

// Close flushes pending publishes.
func (p *EventPubSub) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.mu.Unlock()
	return p.PubSubClient.Close()
}
