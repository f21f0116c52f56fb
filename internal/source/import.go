package source

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// addressColumn is the header name the import formats look for.
const addressColumn = "Address"

// ReadImportFile reads an address list from a .csv or .xlsx file. The file
// must have a header row containing an "Address" column.
func ReadImportFile(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, eris.Errorf("source: unsupported import format %q", filepath.Ext(path))
	}
}

func readCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "source: parse %s", path)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col, err := findAddressColumn(rows[0], path)
	if err != nil {
		return nil, err
	}

	return collectColumn(rows[1:], col), nil
}

func readXLSX(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, nil
	}

	sheet := f.Sheets[0]
	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col, err := findAddressColumn(rows[0], path)
	if err != nil {
		return nil, err
	}

	return collectColumn(rows[1:], col), nil
}

func findAddressColumn(header []string, path string) (int, error) {
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), addressColumn) {
			return i, nil
		}
	}
	return 0, eris.Errorf("source: no %q column in %s", addressColumn, path)
}

func collectColumn(rows [][]string, col int) []string {
	var addresses []string
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		if addr := strings.TrimSpace(row[col]); addr != "" {
			addresses = append(addresses, addr)
		}
	}
	return addresses
}
