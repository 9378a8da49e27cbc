package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/scrypster/refmatch/internal/llm"
	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// VectorRef is a tag submitted for embedding.
type VectorRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// VectorReport summarizes a generation run.
type VectorReport struct {
	Generated int      `json:"generated"`
	Errors    []string `json:"errors"`
}

// VectorGenerator embeds tags that have no stored vector.
type VectorGenerator struct {
	tags     storage.TagStore
	vectors  storage.VectorStore
	embedder llm.EmbeddingGenerator
	metrics  *Metrics
}

// NewVectorGenerator creates a generator.
func NewVectorGenerator(tags storage.TagStore, vectors storage.VectorStore, embedder llm.EmbeddingGenerator, metrics *Metrics) *VectorGenerator {
	return &VectorGenerator{tags: tags, vectors: vectors, embedder: embedder, metrics: metrics}
}

// Generate embeds each ref lacking a vector. Refs that already have one are
// skipped; per-ref failures are collected and do not stop the run. Only the
// vector is written; the tag catalog is left as it is.
func (g *VectorGenerator) Generate(ctx context.Context, refs []VectorRef) *VectorReport {
	report := &VectorReport{Errors: []string{}}
	for _, ref := range refs {
		generated, err := g.generateOne(ctx, ref)
		if err != nil {
			msg := fmt.Sprintf("Error generating vector for ref %s: %v", ref.ID, err)
			log.Printf("engine: %s", msg)
			report.Errors = append(report.Errors, msg)
			continue
		}
		if generated {
			report.Generated++
		}
	}
	log.Printf("engine: generated %d/%d vectors", report.Generated, len(refs))
	return report
}

func (g *VectorGenerator) generateOne(ctx context.Context, ref VectorRef) (bool, error) {
	if ref.ID == "" || strings.TrimSpace(ref.Title) == "" {
		return false, fmt.Errorf("%w: id and title are required", storage.ErrInvalidInput)
	}

	exists, err := g.vectors.HasTagVector(ctx, ref.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	embedding, err := g.embedder.Embed(ctx, strings.TrimSpace(ref.Title+" "+ref.Type))
	if err != nil {
		return false, err
	}

	if err := g.vectors.StoreTagVector(ctx, &types.TagVector{
		TagID:     ref.ID,
		Title:     ref.Title,
		Embedding: embedding,
		Model:     g.embedder.GetModel(),
	}); err != nil {
		return false, err
	}
	g.metrics.vectorGenerated()
	return true, nil
}

// Backfill embeds every catalog tag without a vector, batch by batch.
// It stops when no tags remain or a batch makes no progress.
func (g *VectorGenerator) Backfill(ctx context.Context, batch int) (*VectorReport, error) {
	if batch < 1 {
		batch = 100
	}
	total := &VectorReport{Errors: []string{}}
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		tags, err := g.tags.ListTagsWithoutVectors(ctx, batch)
		if err != nil {
			return total, fmt.Errorf("failed to list tags without vectors: %w", err)
		}
		if len(tags) == 0 {
			return total, nil
		}

		refs := make([]VectorRef, len(tags))
		for i, t := range tags {
			refs[i] = VectorRef{ID: t.ID, Title: t.Title, Type: t.Type}
		}
		r := g.Generate(ctx, refs)
		total.Generated += r.Generated
		total.Errors = append(total.Errors, r.Errors...)
		if r.Generated == 0 {
			return total, nil
		}
	}
}
