//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"idsearch/internal/identity/models"
	"idsearch/pkg/testutil/containers"
)

const testTopic = "identity.selected.test"

type KafkaPublisherSuite struct {
	suite.Suite
	broker *containers.RedpandaContainer
	ctx    context.Context
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.ctx = context.Background()
	s.broker = containers.NewRedpandaContainer(s.T())

	admin, err := kgo.NewClient(kgo.SeedBrokers(s.broker.SeedBroker))
	s.Require().NoError(err)
	defer admin.Close()

	resp, err := kadm.NewClient(admin).CreateTopics(s.ctx, 3, 1, nil, testTopic)
	s.Require().NoError(err)
	for _, r := range resp {
		s.Require().NoError(r.Err)
	}
}

func (s *KafkaPublisherSuite) TearDownSuite() {
	_ = s.broker.Container.Terminate(s.ctx)
}

func (s *KafkaPublisherSuite) TestPublishedSelectionIsConsumable() {
	pub, err := NewKafkaPublisher([]string{s.broker.SeedBroker}, testTopic)
	s.Require().NoError(err)
	defer pub.Close()
	s.Require().NoError(pub.Ping(s.ctx))

	event := IdentitySelected("sess-1", models.Identity{Name: "Alice", IdentityKey: "02aa"}, time.Now())
	s.Require().NoError(pub.Publish(s.ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker.SeedBroker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	var records []*kgo.Record
	for len(records) == 0 && ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		records = append(records, fetches.Records()...)
	}
	s.Require().Len(records, 1)
	s.Equal("02aa", string(records[0].Key))

	var got Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(event.ID, got.ID)
	s.Equal(TypeIdentitySelected, got.Type)
	s.Equal("sess-1", got.SessionID)
}
