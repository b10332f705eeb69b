package metrics

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"vpnswap/internal/model"
)

var header = []string{
	"timestamp",
	"instance",
	"kind",
	"hostname",
	"mbps",
	"threshold_mbps",
}

// WriteCSV writes measurements to CSV with a fixed column order.
func WriteCSV(w io.Writer, items []model.Measurement) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writeRecords(writer, items); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// AppendCSV appends measurements to path, writing the header only when the
// file is new or empty.
func AppendCSV(path string, items []model.Measurement) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	writer := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	if err := writeRecords(writer, items); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func writeRecords(writer *csv.Writer, items []model.Measurement) error {
	for _, m := range items {
		record := []string{
			m.Timestamp.UTC().Format(time.RFC3339Nano),
			m.Instance,
			m.Kind,
			m.Hostname,
			strconv.FormatFloat(m.Mbps, 'f', 3, 64),
			strconv.FormatFloat(m.ThresholdMbps, 'f', 3, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}
