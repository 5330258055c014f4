// Package keypool manages named collections of single-use license keys.
// A pool is a small CSV sheet (header key,used,mail,date,order_id) living
// in a tabular backend; the allocator consumes rows from it exactly once.
package keypool

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
)

// Record is one license key row in a pool sheet.
type Record struct {
	Key     string
	Used    bool
	Mail    string
	Date    string
	OrderID string
}

// Consume marks the record used and stamps the consumer. A used record
// never reverts to unused.
func (r *Record) Consume(email, orderID string, at time.Time) {
	r.Used = true
	r.Mail = email
	r.Date = at.UTC().Format(time.RFC3339)
	r.OrderID = orderID
}

// Store is the tabular backend contract the allocator depends on: read a
// pool's full row set, write it back whole. The backend's own persistence
// engine is out of scope here.
type Store interface {
	ReadAll(ctx context.Context, poolID string) ([]Record, error)
	WriteAll(ctx context.Context, poolID string, records []Record) error
}

var header = []string{"key", "used", "mail", "date", "order_id"}

// DecodeCSV parses a pool sheet. The legacy 4-column header (without
// order_id) is still accepted; rows are returned in sheet order.
func DecodeCSV(data []byte) ([]Record, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse pool csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("pool csv has no header row")
	}

	head := rows[0]
	if len(head) < 4 || head[0] != "key" || head[1] != "used" {
		return nil, fmt.Errorf("unexpected pool header %v", head)
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 4 {
			return nil, fmt.Errorf("pool row %d: want at least 4 columns, got %d", i+2, len(row))
		}
		rec := Record{
			Key:  row[0],
			Used: strings.EqualFold(strings.TrimSpace(row[1]), "true"),
			Mail: row[2],
			Date: row[3],
		}
		if len(row) > 4 {
			rec.OrderID = row[4]
		}
		records = append(records, rec)
	}
	return records, nil
}

// EncodeCSV serializes records back to the 5-column sheet format. Legacy
// 4-column sheets are upgraded on first write.
func EncodeCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, r := range records {
		used := "false"
		if r.Used {
			used = "true"
		}
		if err := writer.Write([]string{r.Key, used, r.Mail, r.Date, r.OrderID}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("write pool csv: %w", err)
	}
	return buf.Bytes(), nil
}

// CountUnused returns the number of still-allocatable records.
func CountUnused(records []Record) int {
	n := 0
	for _, r := range records {
		if !r.Used {
			n++
		}
	}
	return n
}
