package tables

import (
	"encoding/json"
	"fmt"
)

// The SQL backends store one row per table row; position 0 holds the header
// and each row's cells are kept as a JSON array.

const headerPosition = 0

func encodeCells(cells []string) (string, error) {
	if cells == nil {
		cells = []string{}
	}
	b, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("encode cells: %w", err)
	}
	return string(b), nil
}

func decodeCells(data []byte) ([]string, error) {
	var cells []string
	if err := json.Unmarshal(data, &cells); err != nil {
		return nil, fmt.Errorf("decode cells: %w", err)
	}
	return cells, nil
}

// assemble rebuilds a Table from (position, cells) pairs in position order.
func assemble(positions []int, cells [][]string) Table {
	var t Table
	for i, pos := range positions {
		if pos == headerPosition {
			t.Header = cells[i]
			continue
		}
		t.Rows = append(t.Rows, cells[i])
	}
	return t
}
