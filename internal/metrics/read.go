package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"vpnswap/internal/model"
)

// ReadCSV loads measurements from a CSV file.
func ReadCSV(path string) ([]model.Measurement, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return readCSV(file)
}

func readCSV(r io.Reader) ([]model.Measurement, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	start := 0
	if len(records[0]) > 0 && records[0][0] == "timestamp" {
		start = 1
	}

	items := make([]model.Measurement, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		rec := records[i]
		if len(rec) < len(header) {
			return nil, fmt.Errorf("invalid record at line %d", i+1)
		}
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp at line %d: %w", i+1, err)
		}
		mbps, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid mbps at line %d: %w", i+1, err)
		}
		threshold, _ := strconv.ParseFloat(rec[5], 64)
		items = append(items, model.Measurement{
			Timestamp:     ts,
			Instance:      rec[1],
			Kind:          rec[2],
			Hostname:      rec[3],
			Mbps:          mbps,
			ThresholdMbps: threshold,
		})
	}

	return items, nil
}
