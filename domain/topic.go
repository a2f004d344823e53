package domain

import "fmt"

type TopicKind string

const (
	TopicMessages TopicKind = "messages"
	TopicPresence TopicKind = "presence"
	TopicQueue    TopicKind = "queue"
)

// Topic names a stream of changes observers can subscribe to.
type Topic struct {
	Kind TopicKind
	Key  string
}

func MessagesTopic(id ConversationID) Topic {
	return Topic{Kind: TopicMessages, Key: string(id)}
}

func PresenceTopic(id UserID) Topic {
	return Topic{Kind: TopicPresence, Key: string(id)}
}

func QueueTopic() Topic {
	return Topic{Kind: TopicQueue}
}

func (t Topic) String() string {
	if t.Key == "" {
		return string(t.Kind)
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Key)
}
