package projection

import (
	"cmp"
	"huddle/domain"
	"slices"

	"github.com/samber/lo"
)

// Profiles maps counterparty ids to what surfaces display for them.
type Profiles map[string]domain.Profile

func (p Profiles) lookup(counterpartyID string) domain.Profile {
	if profile, ok := p[counterpartyID]; ok {
		if profile.DisplayName == "" {
			profile.DisplayName = counterpartyID
		}
		return profile
	}
	return domain.Profile{ID: counterpartyID, DisplayName: counterpartyID}
}

// Aggregate groups a flat, unordered message set into one conversation per counterparty.
// The output does not depend on the input order: conversations are sorted by latest
// activity, then latest message id, then counterparty id.
// Every surface derives its list from this function; none keeps its own grouping.
func Aggregate(messages []domain.Message, selfID string, profiles Profiles) []domain.Conversation {
	relevant := lo.Filter(messages, func(m domain.Message, _ int) bool {
		return m.Involves(selfID)
	})
	groups := lo.GroupBy(relevant, func(m domain.Message) string {
		return m.CounterpartyOf(selfID)
	})

	conversations := make([]domain.Conversation, 0, len(groups))
	for counterpartyID, group := range groups {
		latest := lo.MaxBy(group, func(a, b domain.Message) bool {
			return a.After(b)
		})
		profile := profiles.lookup(counterpartyID)
		conversations = append(conversations, domain.Conversation{
			CounterpartyID: counterpartyID,
			Kind:           latest.Kind,
			DisplayName:    profile.DisplayName,
			AvatarURL:      profile.AvatarURL,
			LatestMessage:  latest,
			UnreadCount: lo.CountBy(group, func(m domain.Message) bool {
				return m.UnreadFor(selfID)
			}),
		})
	}

	slices.SortFunc(conversations, func(a, b domain.Conversation) int {
		if c := b.LatestMessage.CreatedAt.Compare(a.LatestMessage.CreatedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(b.LatestMessage.ID, a.LatestMessage.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.CounterpartyID, b.CounterpartyID)
	})
	return conversations
}

// Counterparties lists the distinct counterparties of selfID, used to prefetch profiles.
func Counterparties(messages []domain.Message, selfID string) []string {
	ids := lo.FilterMap(messages, func(m domain.Message, _ int) (string, bool) {
		return m.CounterpartyOf(selfID), m.Involves(selfID)
	})
	return lo.Uniq(ids)
}

// Thread returns the messages exchanged with one counterparty, in timeline order.
func Thread(messages []domain.Message, selfID, counterpartyID string) []domain.Message {
	return lo.Filter(messages, func(m domain.Message, _ int) bool {
		return m.Involves(selfID) && m.CounterpartyOf(selfID) == counterpartyID
	})
}
