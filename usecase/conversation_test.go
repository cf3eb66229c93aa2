package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/edge-assistant/domain"
)

func TestNewConversationHoldsSeed(t *testing.T) {
	c := NewConversation("Hi! How can I help?")

	msgs := c.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.AssistantRole, msgs[0].Role)
	assert.Equal(t, "Hi! How can I help?", msgs[0].Content)
}

func TestAppendKeepsGivenIDAndTime(t *testing.T) {
	c := NewConversation("seed")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	stored := c.Append(domain.Message{Role: domain.UserRole, Content: "hi", ID: "fixed", CreatedAt: at})

	assert.Equal(t, "fixed", stored.ID)
	assert.Equal(t, at, stored.CreatedAt)
}

func TestAppendFillsIDAndTime(t *testing.T) {
	c := NewConversation("seed")
	c.now = func() time.Time { return time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("X", 2*3600)) }

	stored := c.Append(domain.Message{Role: domain.UserRole, Content: "hi"})

	assert.NotEmpty(t, stored.ID)
	assert.True(t, stored.CreatedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, stored.CreatedAt.Location())
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewConversation("seed")
	snap := c.Snapshot()
	snap[0].Content = "changed"

	assert.Equal(t, "seed", c.Snapshot()[0].Content)
}

func TestConcurrentAppendKeepsEveryMessage(t *testing.T) {
	c := NewConversation("seed")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Append(domain.Message{Role: domain.UserRole, Content: "x"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 51, c.Len())
}
