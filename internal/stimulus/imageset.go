package stimulus

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sort"

	"github.com/spaun-sim/stimseq/internal/constants"
	"github.com/spaun-sim/stimseq/internal/sequence"
)

// ImageSetFormat is the header version written by SaveImageSet.
const ImageSetFormat = 1

// Image is one labeled dataset entry.
type Image struct {
	Label  string    `json:"label"`
	Pixels []float64 `json:"pixels"`
}

// imageSetHeader is the first line of an image set file.
type imageSetHeader struct {
	Version int `json:"version"`
	Dim     int `json:"dim"`
	Count   int `json:"count"`
}

// ImageSet is an in-memory labeled image dataset. It implements both
// sequence.ImageIndex and Provider.
type ImageSet struct {
	dim     int
	images  []Image
	byLabel map[string][]int
	blank   []float64
}

// NewImageSet indexes images by label. Every image must have dim pixels.
func NewImageSet(dim int, images []Image) (*ImageSet, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("image dimension must be positive, got %d", dim)
	}
	s := &ImageSet{
		dim:     dim,
		images:  images,
		byLabel: make(map[string][]int),
		blank:   make([]float64, dim),
	}
	for i, img := range images {
		if len(img.Pixels) != dim {
			return nil, fmt.Errorf("image %d (%s) has %d pixels, want %d", i, img.Label, len(img.Pixels), dim)
		}
		s.byLabel[img.Label] = append(s.byLabel[img.Label], i)
	}
	return s, nil
}

// SyntheticImageSet builds a random dataset with perLabel images for every
// digit, list symbol and task letter. It stands in for a real dataset in dry
// runs.
func SyntheticImageSet(dim, perLabel int, rng *rand.Rand) *ImageSet {
	var labels []string
	for d := range constants.DigitCount {
		labels = append(labels, string(rune('0'+d)))
	}
	for c := range constants.SymbolLabels {
		labels = append(labels, string(c))
	}
	sort.Strings(labels)
	labels = append(labels, constants.TaskLabels[:]...)

	images := make([]Image, 0, len(labels)*perLabel)
	for _, l := range labels {
		for range perLabel {
			px := make([]float64, dim)
			for i := range px {
				px[i] = rng.Float64()
			}
			images = append(images, Image{Label: l, Pixels: px})
		}
	}
	s, _ := NewImageSet(dim, images)
	return s
}

// Len returns the number of images.
func (s *ImageSet) Len() int { return len(s.images) }

// Labels returns the distinct labels, sorted.
func (s *ImageSet) Labels() []string {
	out := make([]string, 0, len(s.byLabel))
	for l := range s.byLabel {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// PickIndex returns a random image showing digit.
func (s *ImageSet) PickIndex(digit string, rng *rand.Rand) (int, error) {
	idx := s.byLabel[digit]
	if len(idx) == 0 {
		return 0, fmt.Errorf("no images labeled %q", digit)
	}
	return idx[rng.IntN(len(idx))], nil
}

// LabelOf returns the label of the image at index.
func (s *ImageSet) LabelOf(index int) (string, error) {
	if index < 0 || index >= len(s.images) {
		return "", fmt.Errorf("image index %d out of range [0, %d)", index, len(s.images))
	}
	return s.images[index].Label, nil
}

// Blank returns the all-zero image.
func (s *ImageSet) Blank() Stimulus {
	return Stimulus{Data: s.blank, Index: -1}
}

// Lookup returns the image for a symbol. Labels use the first image carrying
// the label, so the same label always shows the same picture.
func (s *ImageSet) Lookup(sym sequence.Symbol) Stimulus {
	switch sym.Kind {
	case sequence.KindHandWritten, sequence.KindFixedIndex:
		if sym.Index >= 0 && sym.Index < len(s.images) {
			return Stimulus{Data: s.images[sym.Index].Pixels, Index: sym.Index}
		}
	case sequence.KindLabel:
		if i, ok := s.canonical(sym.Label); ok {
			return Stimulus{Data: s.images[i].Pixels, Index: i}
		}
	}
	return s.Blank()
}

func (s *ImageSet) canonical(label string) (int, bool) {
	if idx := s.byLabel[label]; len(idx) > 0 {
		return idx[0], true
	}
	if c, ok := constants.DigitChar(label); ok {
		if idx := s.byLabel[string(c)]; len(idx) > 0 {
			return idx[0], true
		}
	}
	if c, ok := constants.SymbolChar(label); ok {
		if idx := s.byLabel[string(c)]; len(idx) > 0 {
			return idx[0], true
		}
	}
	return 0, false
}

// LoadImageSet reads an image set file: a JSON header line followed by one
// JSON image per line. Gzip-compressed files are detected automatically.
func LoadImageSet(path string) (*ImageSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image set: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	return ReadImageSet(r)
}

// ReadImageSet decodes the image set format from r.
func ReadImageSet(r io.Reader) (*ImageSet, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		return nil, fmt.Errorf("image set is empty")
	}
	var hdr imageSetHeader
	if err := json.Unmarshal(scanner.Bytes(), &hdr); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if hdr.Version != ImageSetFormat {
		return nil, fmt.Errorf("unsupported image set version %d", hdr.Version)
	}

	images := make([]Image, 0, hdr.Count)
	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var img Image
		if err := json.Unmarshal(line, &img); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		images = append(images, img)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	if hdr.Count > 0 && len(images) != hdr.Count {
		return nil, fmt.Errorf("header declares %d images, found %d", hdr.Count, len(images))
	}

	return NewImageSet(hdr.Dim, images)
}

// SaveImageSet writes the set in the format read by LoadImageSet,
// gzip-compressed when compress is true.
func SaveImageSet(path string, s *ImageSet, compress bool) (retErr error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating image set: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil && retErr == nil {
			retErr = err
		}
	}()

	var w io.Writer = f
	if compress {
		gz := gzip.NewWriter(f)
		defer func() {
			if err := gz.Close(); err != nil && retErr == nil {
				retErr = err
			}
		}()
		w = gz
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(imageSetHeader{Version: ImageSetFormat, Dim: s.dim, Count: len(s.images)}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, img := range s.images {
		if err := enc.Encode(img); err != nil {
			return fmt.Errorf("writing image %d: %w", i, err)
		}
	}
	return nil
}
