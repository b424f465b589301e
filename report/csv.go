package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/Noofbiz/brainDecode/monte"
	"github.com/Noofbiz/brainDecode/searchlight"
)

// WriteScoreMapCSV writes one row per voxel: x, y, z, count, then one score
// column per channel. Unevaluated voxels are included with count 0.
func WriteScoreMapCSV(w io.Writer, sm *searchlight.ScoreMap) error {
	cw := csv.NewWriter(w)
	header := []string{"x", "y", "z", "count"}
	for ch := 0; ch < sm.Channels; ch++ {
		header = append(header, fmt.Sprintf("score_%d", ch))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(header))
	for x := 0; x < sm.Shape[0]; x++ {
		for y := 0; y < sm.Shape[1]; y++ {
			for z := 0; z < sm.Shape[2]; z++ {
				row[0] = strconv.Itoa(x)
				row[1] = strconv.Itoa(y)
				row[2] = strconv.Itoa(z)
				row[3] = strconv.Itoa(sm.Count(x, y, z))
				for ch := 0; ch < sm.Channels; ch++ {
					row[4+ch] = strconv.FormatFloat(sm.At(x, y, z, ch), 'g', -1, 64)
				}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("write csv row: %w", err)
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteNullCSV writes the permutation index and null score of every
// permutation, preceded by a row for the observed score (permutation -1).
func WriteNullCSV(w io.Writer, res *monte.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"permutation", "score"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.Write([]string{"-1", strconv.FormatFloat(res.Observed, 'g', -1, 64)}); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	for i, s := range res.Null {
		if err := cw.Write([]string{strconv.Itoa(i), strconv.FormatFloat(s, 'g', -1, 64)}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
