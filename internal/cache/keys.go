package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix = "post:%d"
	// PresenceChannel carries presence snapshots between processes.
	PresenceChannel = "presence:online"
	// OnlineUsersKey is the set of user IDs online in any process.
	OnlineUsersKey = "presence:users"
)

// PostTTL is how long an anonymous post detail view is cached.
var PostTTL = 5 * time.Minute

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// Invalidate removes key; a nil client is a no-op.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}
