package speech

import (
	"strings"
	"sync"

	"lahja/internal/domain"
)

// Catalog tracks the asynchronously-populated set of synthesis voices and
// picks the best candidate for the target language family. Readiness flips
// exactly once, when the engine reports its voice list.
type Catalog struct {
	target   string
	region   string
	fallback string

	mu      sync.Mutex
	ready   bool
	voices  []domain.Voice
	onReady func()
}

// NewCatalog builds a catalog preferring the target language prefix, then
// its regional variant, then the fallback language family.
func NewCatalog(target, region, fallback string) *Catalog {
	return &Catalog{
		target:   strings.ToLower(target),
		region:   strings.ToLower(region),
		fallback: strings.ToLower(fallback),
	}
}

// SetOnReady registers the callback fired when the catalog becomes ready.
func (c *Catalog) SetOnReady(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReady = fn
}

// MarkReady records the engine's voice list. Only the first call takes
// effect; readiness never flips back.
func (c *Catalog) MarkReady(voices []domain.Voice) {
	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		return
	}
	c.ready = true
	c.voices = append([]domain.Voice(nil), voices...)
	fn := c.onReady
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Ready reports whether the voice list has been enumerated.
func (c *Catalog) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// SelectVoice applies the ordered preference: target-language prefix,
// regional variant, fallback-family prefix, then any voice at all. Returns
// nil while the catalog is empty.
func (c *Catalog) SelectVoice() *domain.Voice {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.voices) == 0 {
		return nil
	}
	if v := c.matchLocked(func(lang string) bool { return strings.HasPrefix(lang, c.target) }); v != nil {
		return v
	}
	if v := c.matchLocked(func(lang string) bool { return strings.Contains(lang, c.region) }); v != nil {
		return v
	}
	if v := c.matchLocked(func(lang string) bool { return strings.HasPrefix(lang, c.fallback) }); v != nil {
		return v
	}
	first := c.voices[0]
	return &first
}

func (c *Catalog) matchLocked(match func(lang string) bool) *domain.Voice {
	for _, voice := range c.voices {
		if voice.Lang == "" {
			continue
		}
		if match(strings.ToLower(voice.Lang)) {
			found := voice
			return &found
		}
	}
	return nil
}
