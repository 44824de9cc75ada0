package metadata

import (
	"fmt"
	"strings"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/apperrors"
)

// BuildInput carries the structural facts needed to build one record.
type BuildInput struct {
	SourceID         string
	QualifiedName    string
	ShortName        string
	TableType        datasource.TableType
	Columns          []Column
	RowCountEstimate *int64
	Sample           *datasource.SampleSet
	SampleRowLimit   int
}

// BuildRecord builds the canonical document text and the metadata record
// for one table. It is a pure function of its input: the same input
// always produces byte-identical document text, which keeps embeddings
// reproducible across runs.
//
// Tables with zero columns fail with apperrors.ErrEmptySchema; callers
// skip such tables rather than aborting the run.
func BuildRecord(in BuildInput) (*TableMetadataRecord, error) {
	if len(in.Columns) == 0 {
		return nil, fmt.Errorf("%w: table %s has no columns", apperrors.ErrEmptySchema, in.QualifiedName)
	}

	record := &TableMetadataRecord{
		SourceID:         in.SourceID,
		QualifiedName:    in.QualifiedName,
		ShortName:        in.ShortName,
		TableType:        in.TableType,
		Columns:          in.Columns,
		RowCountEstimate: in.RowCountEstimate,
	}

	if in.Sample != nil && in.SampleRowLimit > 0 && len(in.Sample.Rows) > 0 {
		rows := in.Sample.Rows
		if len(rows) > in.SampleRowLimit {
			rows = rows[:in.SampleRowLimit]
		}
		record.SampleColumns = in.Sample.Columns
		record.SampleRows = rows
	}

	record.DocumentText = renderDocument(record)
	return record, nil
}

// renderDocument produces the fixed document layout. The layout is part
// of the persisted contract: changing it changes every embedding, so it
// must stay stable across versions.
func renderDocument(r *TableMetadataRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "SOURCE: %s\n", r.SourceID)
	fmt.Fprintf(&b, "TABLE: %s\n", r.QualifiedName)
	if r.TableType == datasource.TableTypeView {
		b.WriteString("TYPE: VIEW\n")
	}

	b.WriteString("COLUMNS: ")
	for i, c := range r.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%s)", c.Name, strings.ToUpper(c.DeclaredType))
	}
	b.WriteString("\n")

	if r.RowCountEstimate != nil {
		fmt.Fprintf(&b, "ROW COUNT: %s\n", formatThousands(*r.RowCountEstimate))
	}

	if len(r.SampleRows) > 0 {
		b.WriteString("SAMPLE DATA:\n")
		b.WriteString(renderAligned(r.SampleColumns, r.SampleRows))
	}

	return b.String()
}

// renderAligned lays out sample rows as left-aligned columns of text.
func renderAligned(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, v := range row {
			if i < len(widths) && len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		var line strings.Builder
		for i, v := range cells {
			if i > 0 {
				line.WriteString("  ")
			}
			if i < len(widths) {
				fmt.Fprintf(&line, "%-*s", widths[i], v)
			} else {
				line.WriteString(v)
			}
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteString("\n")
	}

	writeRow(header)
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}

// formatThousands renders n with comma separators. Cosmetic only:
// fingerprints hash raw structured fields, never rendered text.
func formatThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)

	out := strings.Join(parts, ",")
	if negative {
		out = "-" + out
	}
	return out
}
