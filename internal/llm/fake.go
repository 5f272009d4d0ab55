package llm

import "context"

// Fake is an in-memory Client for tests. ChatFn and EmbedFn may be nil,
// in which case canned values are returned.
type Fake struct {
	ChatFn  func(ctx context.Context, req ChatRequest) (string, error)
	EmbedFn func(ctx context.Context, texts []string) ([][]float64, error)

	ChatReply string
	Calls     []ChatRequest
}

func (f *Fake) Chat(ctx context.Context, req ChatRequest) (string, error) {
	f.Calls = append(f.Calls, req)
	if f.ChatFn != nil {
		return f.ChatFn(ctx, req)
	}
	return f.ChatReply, nil
}

func (f *Fake) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if f.EmbedFn != nil {
		return f.EmbedFn(ctx, texts)
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0, 0}
	}
	return out, nil
}
