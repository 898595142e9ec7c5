package utils

import (
	"hash/fnv"
	"time"
)

var avatarEmojis = []string{"🌱", "🌿", "🍃", "🌾", "🎋", "🎍", "🌲", "🌳", "🐼", "🦊", "🐨", "🐸"}

// DefaultAvatar 为没有头像的用户挑选一个 emoji，同一个 seed 总是得到同一个
func DefaultAvatar(seed string) string {
	h := fnv.New32a()
	h.Write([]byte(seed))
	return avatarEmojis[h.Sum32()%uint32(len(avatarEmojis))]
}

// DaysSince 计算加入天数
func DaysSince(t, now time.Time) int {
	if now.Before(t) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}
