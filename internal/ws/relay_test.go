package ws

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRelay_DeliversAcrossHubs(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	newInstance := func() (*Hub, *redis.Client) {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		hub := NewHub()
		relay := NewRedisRelay(rdb, hub, "")
		hub.SetRelay(relay)
		go hub.Run(ctx)
		go func() { _ = relay.Run(ctx) }()
		return hub, rdb
	}

	hubA, _ := newInstance()
	hubB, rdbB := newInstance()

	// Both subscribers must be attached before publishing.
	require.Eventually(t, func() bool {
		n, err := rdbB.PubSubNumSub(ctx, DefaultRelayChannel).Result()
		return err == nil && n[DefaultRelayChannel] == 2
	}, time.Second, 10*time.Millisecond)

	onA := mockClient(hubA, StaffRoom)
	onB := mockClient(hubB, StaffRoom)
	hubA.register <- onA
	hubB.register <- onB
	time.Sleep(10 * time.Millisecond)

	hubA.Broadcast(StaffRoom, []byte(`{"type":"bill_request"}`))

	for name, c := range map[string]*Client{"instance A": onA, "instance B": onB} {
		select {
		case msg := <-c.send:
			assert.JSONEq(t, `{"type":"bill_request"}`, string(msg), name)
		case <-time.After(time.Second):
			t.Fatalf("%s did not receive the relayed message", name)
		}
	}
}

func TestRedisRelay_PublishError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	relay := NewRedisRelay(rdb, NewHub(), "custom")
	assert.Equal(t, "custom", relay.Channel)

	mr.Close()
	assert.Error(t, relay.Publish(StaffRoom, []byte(`{}`)))
}
