package anthropic

// BuildCachedSystemBlocks wraps a static system prompt in a single block
// carrying an ephemeral cache breakpoint. Repeated extraction calls share
// the prompt prefix, so later calls read it from the cache.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
