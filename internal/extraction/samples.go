package extraction

import (
	"bytes"
	"fmt"
	"image/color"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"

	"github.com/zombor/lexiflow-mocks/internal/scanning"
)

const (
	sampleWidth  = 600
	sampleHeight = 320
	sampleTitle  = "LexiFlow Sample Receipt"
)

// sampleExtensions are probed in order when a sample name has no extension
var sampleExtensions = []string{".png", ".jpg", ".jpeg"}

type sampleSpec struct {
	filename string
	lines    []string
}

// sampleSpecs are the fixtures seeded into the sample directory
var sampleSpecs = []sampleSpec{
	{
		filename: "r1.png",
		lines: []string{
			"Office Depot AG",
			"Rechnung 2025-01-16",
			"Gesamt 89,90 EUR",
			"MwSt 19%",
		},
	},
	{
		filename: "r2.png",
		lines: []string{
			"Bäckerei Sonnig",
			"Rechnung 2025-01-17",
			"Gesamt 5,40 EUR",
			"MwSt 7%",
		},
	},
}

// EnsureSamples renders every missing fixture. Existing files are never rewritten.
func EnsureSamples(samples Storage) error {
	for _, spec := range sampleSpecs {
		if samples.Exists(spec.filename) {
			continue
		}

		data, err := renderSample(spec.lines)
		if err != nil {
			return fmt.Errorf("rendering sample %s: %w", spec.filename, err)
		}
		if _, err := samples.Save(spec.filename, data); err != nil {
			return fmt.Errorf("saving sample %s: %w", spec.filename, err)
		}
		slog.Info("Sample created", "filename", spec.filename, "dir", samples.Dir())
	}
	return nil
}

// renderSample draws the lines onto a blank receipt and embeds them as PNG text so
// they can be read back without a recognition engine
func renderSample(lines []string) ([]byte, error) {
	dc := gg.NewContext(sampleWidth, sampleHeight)
	dc.SetColor(color.White)
	dc.Clear()

	// gg starts with the 7x13 bitmap face; ay=1 anchors y at the top of the text
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(sampleTitle, 40, 10, 0, 1)
	y := 40.0
	for _, line := range lines {
		dc.DrawStringAnchored(line, 40, y, 0, 1)
		y += 40
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return scanning.WritePNGText(buf.Bytes(), scanning.SampleTextKey, strings.Join(lines, "\n"))
}

// resolveSample maps a client supplied sample name to a file name inside the
// sample storage. Directory components are dropped; a name without extension is
// probed against sampleExtensions and defaults to .png.
func resolveSample(samples Storage, name string) string {
	candidate := baseName(name)
	ext := filepath.Ext(candidate)
	if ext != "" {
		return candidate
	}

	for _, extension := range sampleExtensions {
		if path := candidate + extension; samples.Exists(path) {
			return path
		}
	}
	return candidate + sampleExtensions[0]
}
