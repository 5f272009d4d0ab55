package flows

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// historyPost is a published post with a stored embedding, weighted by
// engagement: likes count once, comments double, shares triple.
type historyPost struct {
	embedding  []float64
	engagement int
}

// scoreAgainstHistory rates each candidate text 0-100 by its average
// cosine similarity to the client's five best-performing historical
// posts. Without embedded history every candidate lands on the neutral
// 50 so curation still produces an ordering downstream.
func (s *Service) scoreAgainstHistory(ctx context.Context, clientID string, texts []string) ([]float64, error) {
	history, err := s.embeddedHistory(ctx, clientID)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(texts))
	if len(history) == 0 {
		for i := range scores {
			scores[i] = 50
		}
		return scores, nil
	}

	vectors, err := s.LLM.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}

	sort.Slice(history, func(i, j int) bool { return history[i].engagement > history[j].engagement })
	top := history
	if len(top) > 5 {
		top = top[:5]
	}

	for i, vec := range vectors {
		var sum float64
		for _, h := range top {
			sum += cosine(vec, h.embedding)
		}
		avg := sum / float64(len(top))
		scores[i] = math.Round(math.Max(0, math.Min(1, avg)) * 100)
	}
	return scores, nil
}

func (s *Service) embeddedHistory(ctx context.Context, clientID string) ([]historyPost, error) {
	recs, err := s.Tables.RecentHistory(ctx, clientID, 50)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	var out []historyPost
	for _, rec := range recs {
		emb := parseEmbedding(rec.Fields.Str("Embedding", ""))
		if emb == nil {
			continue
		}
		f := rec.Fields
		engagement := f.Int("Likes", 0) + f.Int("Shares", 0)*3 + f.Int("Comments", 0)*2
		out = append(out, historyPost{embedding: emb, engagement: engagement})
	}
	return out, nil
}

// parseEmbedding reads the comma-separated vector stored on history
// rows. Short or malformed values are treated as absent.
func parseEmbedding(raw string) []float64 {
	if !strings.Contains(raw, ",") {
		return nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) < 100 {
		return nil
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil
		}
		out[i] = v
	}
	return out
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
