package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// Bus pairs a publisher with a subscriber on the same transport.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both ends.
func (b *Bus) Close() error {
	perr := b.Publisher.Close()
	serr := b.Subscriber.Close()
	if perr != nil {
		return perr
	}
	return serr
}

// NewInProcess returns an in-memory bus. Messages published while nobody
// is subscribed are dropped.
func NewInProcess() *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewStdLogger(false, false))
	return &Bus{Publisher: ch, Subscriber: ch}
}

// NewRedis returns a bus on redis streams. consumerGroup may be empty for
// fan-out delivery.
func NewRedis(client redis.UniversalClient, consumerGroup string) (*Bus, error) {
	logger := watermill.NewStdLogger(false, false)
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}
	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: consumerGroup,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("failed to create redis subscriber: %w", err)
	}
	return &Bus{Publisher: pub, Subscriber: sub}, nil
}
