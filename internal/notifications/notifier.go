// Package notifications delivers presence updates to websocket clients and
// shares presence between processes through Redis.
package notifications

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sort"
	"strconv"

	"chorus/internal/cache"
	"chorus/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes presence snapshots and maintains the shared online set.
// A Notifier without a Redis client is a no-op.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether the notifier is backed by Redis.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

func (n *Notifier) MarkOnline(ctx context.Context, userID uint) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.SAdd(ctx, cache.OnlineUsersKey, formatID(userID)).Err()
}

func (n *Notifier) MarkOffline(ctx context.Context, userID uint) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.SRem(ctx, cache.OnlineUsersKey, formatID(userID)).Err()
}

// OnlineUsers returns the shared online set in ascending numeric order.
func (n *Notifier) OnlineUsers(ctx context.Context) ([]string, error) {
	if !n.Enabled() {
		return nil, nil
	}
	members, err := n.rdb.SMembers(ctx, cache.OnlineUsersKey).Result()
	if err != nil {
		return nil, err
	}
	sortIDs(members)
	return members, nil
}

// PublishPresence sends a presence payload to every subscribed process.
func (n *Notifier) PublishPresence(ctx context.Context, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, cache.PresenceChannel, payload).Err()
}

// StartPresenceSubscriber calls onMessage for every payload published on the
// presence channel until ctx is cancelled.
func (n *Notifier) StartPresenceSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, cache.PresenceChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in presence subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.ParseUint(ids[i], 10, 64)
		b, errB := strconv.ParseUint(ids[j], 10, 64)
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
}
