package audio

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Synthesizer converts a line of text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

const cacheShards = 16

// Cache holds synthesized audio keyed by id, format "<kind>-<sessionID>[-<turn>]".
// A zero-length buffer is a valid entry meaning synthesis failed and the
// telephony layer must fall back to its built-in voice. Entries live until the
// owning session is finalized.
type Cache struct {
	synth   Synthesizer
	timeout time.Duration
	log     *logrus.Logger

	shards [cacheShards]cacheShard
}

type cacheShard struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewCache(synth Synthesizer, timeout time.Duration, log *logrus.Logger) *Cache {
	c := &Cache{synth: synth, timeout: timeout, log: log}
	for i := range c.shards {
		c.shards[i].entries = make(map[string][]byte)
	}
	return c
}

func (c *Cache) shard(id string) *cacheShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &c.shards[h.Sum32()%cacheShards]
}

// Synthesize populates the cache for audioID. It never fails: any provider
// error, timeout, or missing provider stores the empty sentinel instead.
func (c *Cache) Synthesize(ctx context.Context, audioID, text string) {
	data := c.render(ctx, audioID, text)
	sh := c.shard(audioID)
	sh.mu.Lock()
	sh.entries[audioID] = data
	sh.mu.Unlock()
}

func (c *Cache) render(ctx context.Context, audioID, text string) []byte {
	if c.synth == nil || text == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	data, err := c.synth.Synthesize(ctx, text)
	if err != nil {
		c.log.WithFields(logrus.Fields{"audio_id": audioID, "error": err}).
			Warn("tts synthesis failed, storing empty sentinel")
		return nil
	}
	return data
}

// Get returns the cached bytes for an id.
func (c *Cache) Get(audioID string) ([]byte, bool) {
	sh := c.shard(audioID)
	sh.mu.RLock()
	data, ok := sh.entries[audioID]
	sh.mu.RUnlock()
	return data, ok
}

// HasValidAudio reports whether audioID maps to a non-empty buffer. Absent and
// empty both mean "use the text fallback".
func (c *Cache) HasValidAudio(audioID string) bool {
	data, ok := c.Get(audioID)
	return ok && len(data) > 0
}

// EvictSession removes every entry whose id references the session, so no
// audio outlives its call.
func (c *Cache) EvictSession(sessionID string) {
	if sessionID == "" {
		return
	}
	for i := range c.shards {
		sh := &c.shards[i]
		sh.mu.Lock()
		for id := range sh.entries {
			if strings.Contains(id, sessionID) {
				delete(sh.entries, id)
			}
		}
		sh.mu.Unlock()
	}
}

// Len reports the total number of cached entries.
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		c.shards[i].mu.RLock()
		n += len(c.shards[i].entries)
		c.shards[i].mu.RUnlock()
	}
	return n
}
