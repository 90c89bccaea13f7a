package chunker

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// The canonical tokenizer is cl100k_base. Every token budget in the
// pipeline is measured against it; changing the encoding invalidates
// previously written snapshots and embeddings.

var (
	tokOnce  sync.Once
	tokCodec tokenizer.Codec
	tokErr   error
)

func codec() (tokenizer.Codec, error) {
	tokOnce.Do(func() {
		tokCodec, tokErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return tokCodec, tokErr
}

// CountTokens returns the cl100k_base token count of text. If the encoder
// cannot be loaded it falls back to a chars/4 estimate so chunking can
// still proceed.
func CountTokens(text string) int {
	c, err := codec()
	if err != nil {
		return len(text) / 4
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}
