package engine

import (
	"fmt"
	"strings"

	"github.com/wrenware/pulse/internal/embedding"
	"github.com/wrenware/pulse/pkg/types"
)

// NoDataMarker is rendered in place of the metrics sections when no category
// yielded a qualifying record. It is an explicit signal to the downstream
// model, not an error, and appears even when protocol, memory, or insight
// sections are present.
const NoDataMarker = "No relevant health data found for this query."

// dateFormat is how record dates appear in rendered context.
const dateFormat = "2006-01-02"

// Render serializes the context into the prompt-injection text. The output
// is deterministic: sections appear in fixed order (protocols, memory,
// insights, then categories sorted by name) and records within a category
// keep their ascending-distance order. A context with no qualifying metrics
// ends with NoDataMarker; when nothing else qualified either, the marker is
// the entire output.
func (c *Context) Render() string {
	var b strings.Builder

	if len(c.Protocols) > 0 {
		b.WriteString("Active protocols:\n")
		for _, p := range c.Protocols {
			b.WriteString(renderProtocol(p))
		}
		b.WriteString("\n")
	}

	if c.Memory != "" {
		b.WriteString("Known about this user:\n")
		b.WriteString(c.Memory)
		b.WriteString("\n\n")
	}

	if len(c.Insights) > 0 {
		b.WriteString("Recent insights:\n")
		for _, e := range c.Insights {
			fmt.Fprintf(&b, "- [%s] %s\n", e.Timestamp.UTC().Format(dateFormat), e.Content)
		}
		b.WriteString("\n")
	}

	if len(c.Categories) == 0 {
		b.WriteString(NoDataMarker)
		return b.String()
	}

	for _, cat := range c.Categories {
		fmt.Fprintf(&b, "%s data:\n", categoryHeading(cat.Category))
		for _, sr := range cat.Records {
			b.WriteString(renderRecord(sr.Record))
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// categoryHeading turns "heart_rate" into "Heart rate".
func categoryHeading(category string) string {
	s := strings.ReplaceAll(category, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// renderProtocol formats one protocol snapshot as a single line.
func renderProtocol(p types.ProtocolSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s (started %s, %s)", p.Name, p.StartDate.UTC().Format(dateFormat), p.Status)
	if p.Description != "" {
		fmt.Fprintf(&b, ": %s", p.Description)
	}
	if len(p.TargetMetrics) > 0 {
		fmt.Fprintf(&b, " [targets: %s]", strings.Join(p.TargetMetrics, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

// renderRecord formats one metric record as a single line using the same
// ordered field serialization the embeddings are built from, so the model
// sees exactly the text that was matched.
func renderRecord(r types.MetricRecord) string {
	fields := embedding.CanonicalRecordText(r.MetricType, r.Value, r.Source)
	return fmt.Sprintf("- %s: %s\n", r.Date.UTC().Format(dateFormat), fields)
}
