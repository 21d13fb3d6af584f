// Package export renders canvas snapshots to printable documents.
package export

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/jung-kurt/gofpdf"
)

const (
	pageW  = 297.0
	pageH  = 210.0
	margin = 10.0
)

// WritePDF draws every stroke of s onto one landscape A4 page, scaled to fit.
func WritePDF(w io.Writer, s domain.Snapshot) error {
	p := render(s)
	if err := p.Output(w); err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	return nil
}

func WriteFile(path string, s domain.Snapshot) error {
	p := render(s)
	if err := p.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("export pdf %s: %w", path, err)
	}
	return nil
}

func render(s domain.Snapshot) *gofpdf.Fpdf {
	p := gofpdf.New("L", "mm", "A4", "")
	p.AddPage()
	p.SetLineWidth(0.5)
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	tr := fit(s.Strokes)
	for _, st := range s.Strokes {
		r, g, b := parseHex(st.Color)
		p.SetDrawColor(r, g, b)
		p.SetFillColor(r, g, b)

		n := st.PointCount()
		if n == 1 {
			x, y := tr.apply(st.Points[0], st.Points[1])
			p.Circle(x, y, 0.25, "F")
			continue
		}
		for i := 1; i < n; i++ {
			x0, y0 := tr.apply(st.Points[2*i-2], st.Points[2*i-1])
			x1, y1 := tr.apply(st.Points[2*i], st.Points[2*i+1])
			p.Line(x0, y0, x1, y1)
		}
	}
	return p
}

type transform struct {
	minX, minY, scale float64
}

func (t transform) apply(x, y float64) (float64, float64) {
	return margin + (x-t.minX)*t.scale, margin + (y-t.minY)*t.scale
}

// fit maps the strokes' bounding box into the printable area, keeping the
// aspect ratio. Drawings smaller than the page are not enlarged.
func fit(strokes []domain.Stroke) transform {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, st := range strokes {
		for i := 0; i+1 < len(st.Points); i += 2 {
			minX = math.Min(minX, st.Points[i])
			maxX = math.Max(maxX, st.Points[i])
			minY = math.Min(minY, st.Points[i+1])
			maxY = math.Max(maxY, st.Points[i+1])
		}
	}
	if math.IsInf(minX, 1) {
		return transform{scale: 1}
	}
	scale := 1.0
	if w := maxX - minX; w > 0 {
		scale = math.Min(scale, (pageW-2*margin)/w)
	}
	if h := maxY - minY; h > 0 {
		scale = math.Min(scale, (pageH-2*margin)/h)
	}
	return transform{minX: minX, minY: minY, scale: scale}
}

// parseHex reads #rgb or #rrggbb. Anything else is black.
func parseHex(s string) (int, int, int) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
