package servicebus

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"

	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// EventServiceBus publishes domain events to an Azure Service Bus queue or topic.
type EventServiceBus struct {
	AzservicebusClient *azservicebus.Client
}

func NewEventServiceBus(azServiceBusClient *azservicebus.Client) *EventServiceBus {
	return &EventServiceBus{AzservicebusClient: azServiceBusClient}
}

// NewClient authenticates with the default Azure credential chain against
// <namespace>.servicebus.windows.net.
func NewClient(namespace string) (*azservicebus.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return azservicebus.NewClient(fmt.Sprintf("%s.servicebus.windows.net", namespace), cred, nil)
}

// Publish sends payload and returns the message id it was stamped with.
func (s *EventServiceBus) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	sender, err := s.AzservicebusClient.NewSender(topic, nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while making new sender service bus.")
		return "", err
	}
	defer func() {
		if err := sender.Close(context.Background()); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing sender.")
		}
	}()

	id := uuid.NewString()
	contentType := "application/json"
	msg := &azservicebus.Message{Body: payload, MessageID: &id, ContentType: &contentType}
	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return "", err
	}
	return id, nil
}

func (s *EventServiceBus) Close() error {
	return s.AzservicebusClient.Close(context.Background())
}
