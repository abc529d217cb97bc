package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docsum/internal/doctree"
)

// csvBatch is the number of data rows rendered per section.
const csvBatch = 20

// CSVParser handles CSV files. Rows are rendered as "header: value" pairs
// in sections of csvBatch rows.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: titleFromFilename(filename)}
	if len(records) == 0 {
		return tree, nil
	}

	headers := records[0]
	rows := records[1:]
	for i := 0; i < len(rows); i += csvBatch {
		end := min(i+csvBatch, len(rows))

		var sb strings.Builder
		for _, row := range rows[i:end] {
			sb.WriteString(renderRow(headers, row))
			sb.WriteString("\n")
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			// Line numbers are 1-based and the header is line 1.
			Title: fmt.Sprintf("Rows %d-%d", i+2, end+1),
			Text:  sb.String(),
		})
	}
	return tree, nil
}

func renderRow(headers, row []string) string {
	cells := make([]string, len(row))
	for j, cell := range row {
		if j < len(headers) && headers[j] != "" {
			cells[j] = headers[j] + ": " + cell
		} else {
			cells[j] = cell
		}
	}
	return strings.Join(cells, ", ")
}
