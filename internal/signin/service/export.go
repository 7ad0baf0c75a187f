package service

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/BikerAndy/site-signin/internal/signin/report"
)

var ErrExportFormat = errors.New("unsupported export format")

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Export is a rendered attendance report ready to hand to the host.
type Export struct {
	Filename    string
	ContentType string
	Rows        int
	Body        []byte
}

// Export renders the full ledger, joined with the worker directory, in the
// requested format.
func (s *KioskService) Export(format string) (Export, error) {
	s.mu.Lock()
	rows := report.ToRows(s.ledger.All(), s.directory.Lookup())
	now := s.clock()
	s.mu.Unlock()

	var buf bytes.Buffer
	out := Export{Filename: report.Filename(now, format), Rows: len(rows)}

	switch format {
	case FormatCSV:
		out.ContentType = "text/csv; charset=utf-8"
		if err := report.WriteCSV(&buf, rows); err != nil {
			return Export{}, fmt.Errorf("export csv: %w", err)
		}
	case FormatXLSX:
		out.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		if err := report.WriteXLSX(&buf, rows); err != nil {
			return Export{}, fmt.Errorf("export xlsx: %w", err)
		}
	default:
		return Export{}, ErrExportFormat
	}

	out.Body = buf.Bytes()
	return out, nil
}
