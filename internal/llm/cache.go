package llm

import (
	"sync"
	"time"
)

// ConversationCache keeps a bounded window of recent messages per
// conversation so the classifier can see short-term context. Entries
// expire after a TTL and the oldest conversation is evicted when the
// cache is full.
type ConversationCache struct {
	mu       sync.Mutex
	entries  map[string]*conversation
	maxConvs int
	maxMsgs  int
	ttl      time.Duration
}

type conversation struct {
	messages []string
	touched  time.Time
}

// NewConversationCache returns a cache holding up to maxConvs
// conversations of maxMsgs messages each, expiring after ttl.
func NewConversationCache(maxConvs, maxMsgs int, ttl time.Duration) *ConversationCache {
	if maxConvs <= 0 {
		maxConvs = 100
	}
	if maxMsgs <= 0 {
		maxMsgs = 10
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ConversationCache{
		entries:  make(map[string]*conversation),
		maxConvs: maxConvs,
		maxMsgs:  maxMsgs,
		ttl:      ttl,
	}
}

// Append records a message for the conversation, evicting the oldest
// conversation if the cache is at capacity.
func (c *ConversationCache) Append(contextID, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.entries[contextID]
	if !ok {
		if len(c.entries) >= c.maxConvs {
			c.evictOldestLocked()
		}
		conv = &conversation{}
		c.entries[contextID] = conv
	}

	conv.messages = append(conv.messages, message)
	if len(conv.messages) > c.maxMsgs {
		conv.messages = conv.messages[len(conv.messages)-c.maxMsgs:]
	}
	conv.touched = time.Now()
}

// Recent returns the cached messages for the conversation, oldest
// first. Expired conversations return nil.
func (c *ConversationCache) Recent(contextID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.entries[contextID]
	if !ok {
		return nil
	}
	if time.Since(conv.touched) > c.ttl {
		delete(c.entries, contextID)
		return nil
	}

	out := make([]string, len(conv.messages))
	copy(out, conv.messages)
	return out
}

// Len reports the number of cached conversations.
func (c *ConversationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ConversationCache) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, conv := range c.entries {
		if oldestID == "" || conv.touched.Before(oldest) {
			oldestID = id
			oldest = conv.touched
		}
	}
	if oldestID != "" {
		delete(c.entries, oldestID)
	}
}
