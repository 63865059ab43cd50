package ai

import (
	"github.com/pkoukk/tiktoken-go"
)

// estimateTokens counts tokens offline with tiktoken, falling back to the
// cl100k_base encoding for models tiktoken does not know (Gemini included —
// the estimate is close enough for affordability checks).
func estimateTokens(model, text string) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, err
		}
	}
	return len(enc.Encode(text, nil, nil)), nil
}
