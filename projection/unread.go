package projection

import (
	"huddle/domain"

	"github.com/samber/lo"
)

// UnreadTotal is the badge count. It is always derived from a fresh aggregation,
// never maintained incrementally.
func UnreadTotal(conversations []domain.Conversation) int {
	return lo.SumBy(conversations, func(c domain.Conversation) int {
		return c.UnreadCount
	})
}
