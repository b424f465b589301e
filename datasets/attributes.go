package datasets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Attributes holds the per-sample condition labels and chunk (group) ids.
type Attributes struct {
	Labels []string
	Chunks []int
}

// NewAttributes pairs labels with chunks and validates them.
func NewAttributes(labels []string, chunks []int) (Attributes, error) {
	a := Attributes{Labels: labels, Chunks: chunks}
	if err := a.Validate(); err != nil {
		return Attributes{}, err
	}
	return a, nil
}

// Validate checks that labels and chunks have equal, non-zero length and that
// every chunk occupies one contiguous run of samples. A chunk id that ends
// and later reappears would split a subject/run across groups.
func (a Attributes) Validate() error {
	if len(a.Labels) == 0 {
		return configErr("labels", 0, "no labels")
	}
	if len(a.Labels) != len(a.Chunks) {
		return configErr("chunks", len(a.Chunks), "expected one chunk per label (%d labels)", len(a.Labels))
	}
	seen := make(map[int]bool)
	for i, c := range a.Chunks {
		if i > 0 && c == a.Chunks[i-1] {
			continue
		}
		if seen[c] {
			return configErr("chunks", c, "chunk reappears at sample %d; chunks must be contiguous", i)
		}
		seen[c] = true
	}
	return nil
}

// Classes returns the sorted set of distinct labels.
func (a Attributes) Classes() []string {
	set := make(map[string]struct{})
	for _, l := range a.Labels {
		set[l] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Groups returns the sorted set of distinct chunk ids.
func (a Attributes) Groups() []int {
	set := make(map[int]struct{})
	for _, c := range a.Chunks {
		set[c] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// ClassIndex maps every label to its position in Classes().
func (a Attributes) ClassIndex() map[string]int {
	idx := make(map[string]int)
	for i, c := range a.Classes() {
		idx[c] = i
	}
	return idx
}

// LoadAttributes reads an attributes text file with one "label chunk" pair
// per line, whitespace separated. Blank lines and lines starting with '#'
// are ignored.
func LoadAttributes(path string) (Attributes, error) {
	file, err := os.Open(path)
	if err != nil {
		return Attributes{}, fmt.Errorf("failed to open attributes %s: %w", path, err)
	}
	defer file.Close()

	var a Attributes
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return Attributes{}, fmt.Errorf("%s:%d: expected \"label chunk\", got %q", path, line, text)
		}
		chunk, err := strconv.Atoi(fields[1])
		if err != nil {
			return Attributes{}, fmt.Errorf("%s:%d: failed to parse chunk: %w", path, line, err)
		}
		a.Labels = append(a.Labels, fields[0])
		a.Chunks = append(a.Chunks, chunk)
	}
	if err := scanner.Err(); err != nil {
		return Attributes{}, fmt.Errorf("failed to read attributes %s: %w", path, err)
	}
	if err := a.Validate(); err != nil {
		return Attributes{}, err
	}
	return a, nil
}

// WriteAttributes writes a in the format read by LoadAttributes.
func WriteAttributes(w io.Writer, a Attributes) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# label chunk")
	for i, label := range a.Labels {
		if _, err := fmt.Fprintf(bw, "%s %d\n", label, a.Chunks[i]); err != nil {
			return fmt.Errorf("failed to write attributes: %w", err)
		}
	}
	return bw.Flush()
}
