package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := New[int]()
	a := b.Subscribe(4)
	c := b.Subscribe(4)

	b.Publish(7)

	select {
	case v := <-a:
		assert.Equal(t, 7, v)
	default:
		t.Fatal("subscriber a did not receive published value")
	}
	select {
	case v := <-c:
		assert.Equal(t, 7, v)
	default:
		t.Fatal("subscriber c did not receive published value")
	}
}

func TestPublishDropsOnFullSubscriberWithoutBlocking(t *testing.T) {
	b := New[int]()
	ch := b.Subscribe(1)

	b.Publish(1)
	b.Publish(2) // channel already full — must not block

	require.Len(t, ch, 1)
	assert.Equal(t, 1, <-ch)
}
