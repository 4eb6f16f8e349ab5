package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = time.Second

// nextOnline reads the next presence snapshot queued for c.
func nextOnline(t *testing.T, c *Client) []string {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		require.Equal(t, EventOnlineUsersUpdated, ev.Event)
		var ids []string
		require.NoError(t, json.Unmarshal(ev.Data, &ids))
		return ids
	case <-time.After(testTimeout):
		t.Fatal("no presence update received")
		return nil
	}
}

// waitOnline drains c until a snapshot equal to want arrives.
func waitOnline(t *testing.T, c *Client, want []string) {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case msg := <-c.Send:
			var ev Event
			require.NoError(t, json.Unmarshal(msg, &ev))
			var ids []string
			require.NoError(t, json.Unmarshal(ev.Data, &ids))
			if assert.ObjectsAreEqual(want, ids) {
				return
			}
		case <-deadline:
			t.Fatalf("never received online list %v", want)
		}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected message: %s", msg)
	default:
	}
}

func TestPresence_JoinBroadcastsToJoinedClients(t *testing.T) {
	p := NewPresence(NewNotifier(nil))
	ctx := context.Background()

	alice, err := p.Connect(1, nil)
	require.NoError(t, err)
	bob, err := p.Connect(2, nil)
	require.NoError(t, err)

	p.Join(ctx, alice)
	assert.Equal(t, []string{"1"}, nextOnline(t, alice))
	assertNoMessage(t, bob)

	p.HandleMessage(ctx, bob, []byte(`{"event":"join","data":"2"}`))
	assert.Equal(t, []string{"1", "2"}, nextOnline(t, alice))
	assert.Equal(t, []string{"1", "2"}, nextOnline(t, bob))
}

func TestPresence_JoinIsIdempotent(t *testing.T) {
	p := NewPresence(NewNotifier(nil))
	ctx := context.Background()

	c, err := p.Connect(3, nil)
	require.NoError(t, err)
	p.Join(ctx, c)
	p.Join(ctx, c)

	assert.Equal(t, []string{"3"}, nextOnline(t, c))
	assert.Equal(t, []string{"3"}, nextOnline(t, c))
	assert.Equal(t, []string{"3"}, p.OnlineUsers(ctx))
}

func TestPresence_LogoutRemovesUser(t *testing.T) {
	p := NewPresence(NewNotifier(nil))
	ctx := context.Background()

	alice, _ := p.Connect(1, nil)
	bob, _ := p.Connect(2, nil)
	p.Join(ctx, alice)
	p.Join(ctx, bob)
	nextOnline(t, alice)
	nextOnline(t, alice)
	nextOnline(t, bob)

	p.HandleMessage(ctx, alice, []byte(`{"event":"logout"}`))
	assert.Equal(t, []string{"2"}, nextOnline(t, bob))
	assertNoMessage(t, alice)
	assert.Equal(t, []string{"2"}, p.OnlineUsers(ctx))
}

func TestPresence_LastDisconnectTakesUserOffline(t *testing.T) {
	p := NewPresence(NewNotifier(nil))
	ctx := context.Background()

	watcher, _ := p.Connect(9, nil)
	p.Join(ctx, watcher)
	nextOnline(t, watcher)

	tabA, _ := p.Connect(5, nil)
	tabB, _ := p.Connect(5, nil)
	p.Join(ctx, tabA)
	p.Join(ctx, tabB)
	waitOnline(t, watcher, []string{"5", "9"})

	p.Disconnect(ctx, tabA)
	assert.Equal(t, []string{"5", "9"}, p.OnlineUsers(ctx))
	for range tabA.Send {
	}

	p.Disconnect(ctx, tabB)
	waitOnline(t, watcher, []string{"9"})

	// A second disconnect of the same client is ignored.
	p.Disconnect(ctx, tabB)
	assert.Equal(t, []string{"9"}, p.OnlineUsers(ctx))
}

func TestPresence_IgnoresUnknownAndMalformedFrames(t *testing.T) {
	p := NewPresence(NewNotifier(nil))
	ctx := context.Background()

	c, _ := p.Connect(1, nil)
	p.HandleMessage(ctx, c, []byte(`not json`))
	p.HandleMessage(ctx, c, []byte(`{"event":"send-new-message"}`))

	assertNoMessage(t, c)
	assert.Empty(t, p.OnlineUsers(ctx))
}

func TestPresence_ConnectionLimit(t *testing.T) {
	p := NewPresence(NewNotifier(nil))
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := p.Connect(1, nil)
		require.NoError(t, err)
	}
	_, err := p.Connect(1, nil)
	assert.ErrorIs(t, err, ErrUserFull)

	_, err = p.Connect(2, nil)
	assert.NoError(t, err)
}

func TestPresence_SharedAcrossProcessesThroughRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA := NewPresence(NewNotifier(rdb))
	nodeB := NewPresence(NewNotifier(rdb))
	require.NoError(t, nodeA.Start(ctx))
	require.NoError(t, nodeB.Start(ctx))

	alice, _ := nodeA.Connect(1, nil)
	bob, _ := nodeB.Connect(2, nil)

	nodeA.Join(ctx, alice)
	waitOnline(t, alice, []string{"1"})

	nodeB.Join(ctx, bob)
	waitOnline(t, bob, []string{"1", "2"})
	waitOnline(t, alice, []string{"1", "2"})

	members, err := rdb.SMembers(ctx, "presence:users").Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, members)

	nodeA.Disconnect(ctx, alice)
	waitOnline(t, bob, []string{"2"})
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	t.Parallel()
	n := NewNotifier(nil)
	ctx := context.Background()

	assert.False(t, n.Enabled())
	assert.NoError(t, n.MarkOnline(ctx, 1))
	assert.NoError(t, n.MarkOffline(ctx, 1))
	assert.NoError(t, n.PublishPresence(ctx, "{}"))
	assert.NoError(t, n.StartPresenceSubscriber(ctx, func(string) {}))
	ids, err := n.OnlineUsers(ctx)
	assert.NoError(t, err)
	assert.Nil(t, ids)
}

func TestSortIDs_Numeric(t *testing.T) {
	t.Parallel()
	ids := []string{"10", "2", "1"}
	sortIDs(ids)
	assert.Equal(t, []string{"1", "2", "10"}, ids)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	p := NewPresence(NewNotifier(nil))
	c := NewClient(p, nil, 1)
	assert.NotEmpty(t, c.ID)

	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.TrySend([]byte("x")))
	}
	assert.False(t, c.TrySend([]byte("overflow")))

	close(c.Send)
	assert.False(t, c.TrySend([]byte("closed")))
}
