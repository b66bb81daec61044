package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDiscoveryObserveOnlyOnce(t *testing.T) {
	registry := NewDiscoveryRegistry()
	button := EntityRef{Kind: EntityButton, Id: 30, Position: 3, Name: "Kitchen keypad"}

	now := time.Now()
	assert.True(t, registry.Observe(button, now))
	assert.False(t, registry.Observe(button, now.Add(time.Minute)))
	assert.Equal(t, 1, registry.Count())
	assert.True(t, registry.Known(button))
}

func TestDiscoveryDistinguishesPositions(t *testing.T) {
	registry := NewDiscoveryRegistry()
	now := time.Now()

	assert.True(t, registry.Observe(EntityRef{Kind: EntityButton, Id: 30, Position: 1}, now))
	assert.True(t, registry.Observe(EntityRef{Kind: EntityButton, Id: 30, Position: 2}, now))
	assert.Equal(t, 2, registry.Count())
}

func TestDiscoveryTasksDoNotCollideWithButtons(t *testing.T) {
	registry := NewDiscoveryRegistry()
	now := time.Now()

	assert.True(t, registry.Observe(EntityRef{Kind: EntityButton, Id: 7, Position: 0}, now))
	assert.True(t, registry.Observe(EntityRef{Kind: EntityTask, Id: 7}, now))
	assert.Equal(t, "task_7", EntityRef{Kind: EntityTask, Id: 7}.TopicId())
	assert.Equal(t, "7", EntityRef{Kind: EntityButton, Id: 7}.TopicId())
}

func TestDiscoveryAllOrderedByFirstSeen(t *testing.T) {
	registry := NewDiscoveryRegistry()
	base := time.Now()

	registry.Observe(EntityRef{Kind: EntityTask, Id: 9}, base.Add(2*time.Second))
	registry.Observe(EntityRef{Kind: EntityButton, Id: 30, Position: 1}, base)

	records := registry.All()
	assert.Len(t, records, 2)
	assert.Equal(t, EntityButton, records[0].Entity.Kind)
	assert.Equal(t, EntityTask, records[1].Entity.Kind)
}
