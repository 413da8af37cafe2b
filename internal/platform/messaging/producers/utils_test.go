package producers

import (
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTopicAdmin struct {
	mock.Mock
}

func (m *MockTopicAdmin) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	args := m.Called(topics)
	partitions, _ := args.Get(0).([]kafka.Partition)
	return partitions, args.Error(1)
}

func (m *MockTopicAdmin) CreateTopics(topics ...kafka.TopicConfig) error {
	args := m.Called(topics)
	return args.Error(0)
}

func fastTopicRetries(t *testing.T) {
	attempts, backoff := partitionReadAttempts, partitionReadBackoff
	partitionReadAttempts, partitionReadBackoff = 2, time.Millisecond
	t.Cleanup(func() {
		partitionReadAttempts, partitionReadBackoff = attempts, backoff
	})
}

func TestCreateKafkaTopicIfNotExists(t *testing.T) {
	fastTopicRetries(t)

	t.Run("ExistingTopic", func(t *testing.T) {
		admin := new(MockTopicAdmin)
		admin.On("ReadPartitions", []string{"deeds"}).Return([]kafka.Partition{{Topic: "deeds"}}, nil).Once()

		require.NoError(t, createKafkaTopicIfNotExists(admin, "deeds", 3, 1, testLogger()))
		admin.AssertNotCalled(t, "CreateTopics", mock.Anything)
	})

	t.Run("MissingTopicIsCreatedWithDefaults", func(t *testing.T) {
		admin := new(MockTopicAdmin)
		admin.On("ReadPartitions", []string{"deeds"}).Return(nil, errors.New("unknown topic")).Twice()
		admin.On("CreateTopics", []kafka.TopicConfig{{Topic: "deeds", NumPartitions: 1, ReplicationFactor: 1}}).Return(nil).Once()

		require.NoError(t, createKafkaTopicIfNotExists(admin, "deeds", 0, 0, testLogger()))
		admin.AssertExpectations(t)
	})

	t.Run("CreateFailure", func(t *testing.T) {
		admin := new(MockTopicAdmin)
		admin.On("ReadPartitions", []string{"deeds"}).Return([]kafka.Partition{}, nil).Twice()
		admin.On("CreateTopics", mock.Anything).Return(errors.New("not controller")).Once()

		err := createKafkaTopicIfNotExists(admin, "deeds", 2, 1, testLogger())
		assert.ErrorContains(t, err, "failed to create kafka topic deeds")
	})
}
