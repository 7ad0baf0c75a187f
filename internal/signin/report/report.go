// Package report projects the visit ledger into export rows.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/BikerAndy/site-signin/internal/signin/types"
)

// Header is the export column order.
var Header = []string{
	"Timestamp", "Direction", "Name", "Company", "Role", "CSCS", "Phone",
	"Induction", "RAMS Ack", "PPE", "Notes",
}

// PPESeparator joins PPE ids within one cell.
const PPESeparator = "; "

type Row struct {
	Timestamp string
	Direction string
	Name      string
	Company   string
	Role      string
	CSCS      string
	Phone     string
	Induction string
	RAMS      string
	PPE       string
	Notes     string
}

// Values returns the row's cells in Header order.
func (r Row) Values() []string {
	return []string{
		r.Timestamp, r.Direction, r.Name, r.Company, r.Role, r.CSCS, r.Phone,
		r.Induction, r.RAMS, r.PPE, r.Notes,
	}
}

// ToRows produces one row per visit in ledger order. Visits whose worker is
// not in workers get empty identity fields.
func ToRows(visits []types.VisitEvent, workers map[string]types.WorkerProfile) []Row {
	rows := make([]Row, 0, len(visits))
	for _, v := range visits {
		w := workers[v.WorkerID]
		rows = append(rows, Row{
			Timestamp: v.Timestamp,
			Direction: string(v.Direction),
			Name:      w.Name,
			Company:   w.Company,
			Role:      w.Role,
			CSCS:      w.CSCS,
			Phone:     w.Phone,
			Induction: yesNo(v.InductionConfirmed),
			RAMS:      yesNo(v.RAMSConfirmed),
			PPE:       strings.Join(v.PPEWorn, PPESeparator),
			Notes:     v.Notes,
		})
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Filename returns site-attendance_<YYYY-MM-DD>.<ext> for the UTC date of t.
func Filename(t time.Time, ext string) string {
	return fmt.Sprintf("site-attendance_%s.%s", t.UTC().Format(time.DateOnly), ext)
}

// WriteCSV writes the header and rows with every field double-quoted and
// embedded quotes doubled.
func WriteCSV(w io.Writer, rows []Row) error {
	if err := writeCSVLine(w, Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writeCSVLine(w, r.Values()); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVLine(w io.Writer, fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// SheetName is the worksheet used by WriteXLSX.
const SheetName = "Attendance"

// WriteXLSX writes the same table as WriteCSV as a single-sheet workbook.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := setRow(f, 1, Header); err != nil {
		return err
	}
	for i, r := range rows {
		if err := setRow(f, i+2, r.Values()); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(SheetName, cell, &vals); err != nil {
		return fmt.Errorf("set row %d: %w", n, err)
	}
	return nil
}
