package client

import (
	"sort"
	"support-flow/domain"
)

func sortByRecency(conversations []domain.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastActive.After(conversations[j].LastActive)
	})
}
