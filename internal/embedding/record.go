package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/wrenware/pulse/pkg/types"
)

// CanonicalRecordText serializes a metric record into the canonical ordered
// text that gets embedded. Two logically identical records always produce
// the same text, and hence comparable embeddings, regardless of the
// iteration order of the underlying mapping: known shapes carry a fixed
// field order and generic payloads are sorted by key (see
// types.MetricValue.Fields). Nested values are flattened through compact
// JSON, which sorts map keys.
//
// The layout matches what historical embeddings were generated from:
//
//	Metric type: sleep Source: oura duration_hours: 7.5 score: 88
func CanonicalRecordText(category string, value types.MetricValue, source string) string {
	var b strings.Builder
	b.WriteString("Metric type: ")
	b.WriteString(category)
	b.WriteString(" Source: ")
	b.WriteString(source)

	for _, f := range value.Fields() {
		b.WriteString(" ")
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(types.FlattenValue(f.Value))
	}

	return b.String()
}

// EmbedRecord embeds the canonical serialization of a structured record.
func (g *Generator) EmbedRecord(ctx context.Context, category string, value types.MetricValue, source string) ([]float32, error) {
	text := CanonicalRecordText(category, value, source)
	vec, err := g.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed record %q: %w", category, err)
	}
	return vec, nil
}
