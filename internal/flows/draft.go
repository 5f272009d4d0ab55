package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/postpilot/postpilot/internal/llm"
	"github.com/postpilot/postpilot/internal/recordstore"
)

// variant is one drafted caption candidate.
type variant struct {
	Caption  string `json:"caption"`
	Hashtags string `json:"hashtags"`
	CTA      string `json:"cta"`
}

const draftPromptTmpl = `You write social media posts for %s.
Brand voice: %s.
%s
Write 3 distinct post variants for this idea, each exploring a different angle:

%s

Reply with ONLY a JSON array of 3 objects: [{"caption": "...", "hashtags": "#...", "cta": "..."}].
Captions should be 2-4 sentences with emojis where they fit the voice.`

// draftVariants asks the model for three caption candidates. A response
// with fewer than three usable variants is still accepted; an empty one
// is an error.
func (s *Service) draftVariants(ctx context.Context, cfg recordstore.ClientConfig, ideaText string) ([]variant, error) {
	instructions := ""
	if cfg.Instructions != "" {
		instructions = "Client instructions: " + cfg.Instructions + "."
	}
	prompt := fmt.Sprintf(draftPromptTmpl, cfg.Name, cfg.BrandVoice, instructions, ideaText)

	out, err := s.LLM.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens:   1500,
		Temperature: 0.8,
	})
	if err != nil {
		return nil, err
	}

	var variants []variant
	if err := json.Unmarshal([]byte(llm.StripFences(out)), &variants); err != nil {
		// Some models return a bare object for a single variant.
		var one variant
		if err2 := json.Unmarshal([]byte(llm.StripFences(out)), &one); err2 != nil || one.Caption == "" {
			return nil, fmt.Errorf("bad draft JSON from model: %w", err)
		}
		variants = []variant{one}
	}

	usable := variants[:0]
	for _, v := range variants {
		if strings.TrimSpace(v.Caption) != "" {
			usable = append(usable, v)
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("model produced no usable caption variants")
	}
	return usable, nil
}
