package observability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonitoring_Counters(t *testing.T) {
	req := require.New(t)
	m := NewMonitoring()

	m.IncrMessagesAppended()
	m.IncrMessagesAppended()
	m.IncrDeliveries()
	m.SubscriptionOpened()
	m.SubscriptionOpened()
	m.SubscriptionClosed()

	stats := m.GetLatest()
	req.Equal(uint64(2), stats.MessagesAppended)
	req.Equal(uint64(1), stats.Deliveries)
	req.Equal(int64(1), stats.ActiveSubscriptions)
}

func TestMonitoring_Nil_Is_Noop(t *testing.T) {
	req := require.New(t)
	var m *Monitoring

	m.IncrPresenceWrites()
	req.Equal(Stats{}, m.GetLatest())
}
