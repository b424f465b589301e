package main

// Example command that demonstrates the datasets package: it generates a
// small synthetic block-design acquisition, writes it as CSV, loads it back
// with an attributes file, and converts a batch into gomlx tensors.
//
// Usage:
//   go run ./datasets/example [output-dir]

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Noofbiz/brainDecode/datasets"
)

func main() {
	dir := os.TempDir()
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	cfg := datasets.SynthConfig{
		Shape:             [3]int{6, 6, 4},
		BlockSize:         4,
		Conditions:        []string{"face", "house", "scissors"},
		Cycles:            4,
		NChunks:           4,
		InformativeCenter: [3]int{2, 2, 1},
		InformativeRadius: 1,
		Signal:            1.5,
		Noise:             1,
		Seed:              7,
	}
	ds, err := datasets.Synthesize(cfg)
	if err != nil {
		log.Fatalf("failed to synthesize dataset: %v", err)
	}
	fmt.Printf("Synthesized %d samples on a %v grid\n", ds.Len(), ds.Shape)
	fmt.Printf("  Classes: %v\n", ds.Classes())
	fmt.Printf("  Chunks:  %v\n", ds.Groups())

	// Write the volume and attributes, then read them back
	volPath := filepath.Join(dir, "example_volume.csv")
	attrPath := filepath.Join(dir, "example_attributes.txt")
	if err := datasets.WriteVolumeCSV(volPath, ds.Volume); err != nil {
		log.Fatalf("failed to write volume: %v", err)
	}
	f, err := os.Create(attrPath)
	if err != nil {
		log.Fatalf("failed to create attributes file: %v", err)
	}
	if err := datasets.WriteAttributes(f, ds.Attributes); err != nil {
		log.Fatalf("failed to write attributes: %v", err)
	}
	f.Close()

	vol, err := datasets.LoadVolumeCSV(volPath, cfg.Shape)
	if err != nil {
		log.Fatalf("failed to load volume: %v", err)
	}
	attrs, err := datasets.LoadAttributes(attrPath)
	if err != nil {
		log.Fatalf("failed to load attributes: %v", err)
	}
	loaded, err := datasets.Join(vol, attrs)
	if err != nil {
		log.Fatalf("failed to join volume and attributes: %v", err)
	}
	fmt.Printf("Reloaded %d samples from %s\n", loaded.Len(), volPath)

	// Split and convert the first training batch to gomlx tensors
	part, err := datasets.SplitIndices(loaded.Len(), 0.75, 1)
	if err != nil {
		log.Fatalf("failed to split: %v", err)
	}
	n := min(8, len(part.Train))
	inT, laT, err := loaded.Tensors(part.Train[:n])
	if err != nil {
		log.Fatalf("failed to convert batch to gomlx tensors: %v", err)
	}
	fmt.Printf("Created tensors: input=%v label=%v\n", inT.Shape(), laT.Shape())
	fmt.Printf("  Train samples: %d, test samples: %d\n", len(part.Train), len(part.Test))

	fmt.Println("\nExample completed successfully!")
}
