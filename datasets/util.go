package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func parseFloat32(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

// countCSVRows counts the number of data rows in a CSV file (excluding header)
func countCSVRows(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header
	if _, err := reader.Read(); err != nil {
		return 0, err
	}

	count := 0
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		count++
	}

	return count, nil
}

// LoadVolumeCSV reads a sample volume from a CSV file with a header row and
// one sample per data row. Each row must hold X*Y*Z values in row-major voxel
// order.
func LoadVolumeCSV(path string, shape [3]int) (*Volume, error) {
	nSamples, err := countCSVRows(path)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows in %s: %w", path, err)
	}
	if nSamples == 0 {
		return nil, fmt.Errorf("no samples in %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.ReuseRecord = true
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	voxels := shape[0] * shape[1] * shape[2]
	data := make([]float32, 0, nSamples*voxels)
	for row := 0; row < nSamples; row++ {
		record, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}
		if len(record) != voxels {
			return nil, fmt.Errorf("row %d has %d columns, expected %d for shape %v", row, len(record), voxels, shape)
		}
		for col, field := range record {
			val, err := parseFloat32(field)
			if err != nil {
				return nil, fmt.Errorf("failed to parse row %d column %d: %w", row, col, err)
			}
			data = append(data, val)
		}
	}
	return NewVolume(shape, nSamples, data)
}

// WriteVolumeCSV writes v in the layout LoadVolumeCSV reads.
func WriteVolumeCSV(path string, v *Volume) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	n := v.Voxels()
	record := make([]string, n)
	for i := range record {
		record[i] = "v" + strconv.Itoa(i)
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for s := 0; s < v.NumSamples; s++ {
		for i, val := range v.Sample(s) {
			record[i] = strconv.FormatFloat(float64(val), 'g', -1, 32)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write sample %d: %w", s, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return file.Close()
}

// LoadMaskCSV reads an inclusion mask: a header row followed by one row of
// X*Y*Z values where any non-zero value marks an included voxel.
func LoadMaskCSV(path string, shape [3]int) ([]bool, error) {
	vol, err := LoadVolumeCSV(path, shape)
	if err != nil {
		return nil, fmt.Errorf("load mask: %w", err)
	}
	if vol.NumSamples != 1 {
		return nil, fmt.Errorf("mask %s has %d rows, expected 1", path, vol.NumSamples)
	}
	mask := make([]bool, vol.Voxels())
	for i, val := range vol.Sample(0) {
		mask[i] = val != 0
	}
	return mask, nil
}
