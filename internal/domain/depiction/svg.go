// Package depiction renders structure artefacts: SVG drawings of the 2D
// layout and MOL V2000 blocks of 3D conformers.
package depiction

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/ChemSight/internal/domain/conformer"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/pkg/errors"
)

// Options controls SVG output.
type Options struct {
	Width   int
	Height  int
	Padding float64
	// BondSpacing is the distance in pixels between the strokes of a
	// double or triple bond.
	BondSpacing float64
	FontSize    float64
	Title       string
}

// DefaultOptions returns a 300x300 drawing.
func DefaultOptions() Options {
	return Options{Width: 300, Height: 300, Padding: 24, BondSpacing: 4, FontSize: 14}
}

// ContentTypeSVG is the MIME type of SVG drawings.
const ContentTypeSVG = "image/svg+xml"

// SVG renders m as a standalone SVG document.
func SVG(m *molecule.Molecule, opts Options) (string, error) {
	var sb strings.Builder
	if err := WriteSVG(&sb, m, opts); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteSVG draws the heavy-atom skeleton of m: bonds as lines with offset
// strokes for double and triple bonds, an inner dashed stroke for aromatic
// ring bonds, and labels for heteroatoms, charged atoms and isolated atoms.
func WriteSVG(w io.Writer, m *molecule.Molecule, opts Options) error {
	if m == nil || m.NumAtoms() == 0 {
		return errors.New(errors.CodeInvalidParam, "nothing to draw")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		d := DefaultOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}
	if opts.BondSpacing <= 0 {
		opts.BondSpacing = DefaultOptions().BondSpacing
	}
	if opts.FontSize <= 0 {
		opts.FontSize = DefaultOptions().FontSize
	}

	pos := fit(conformer.Layout2D(m), opts)
	ri := m.RingInfo()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		opts.Width, opts.Height, opts.Width, opts.Height)
	if opts.Title != "" {
		fmt.Fprintf(bw, "<title>%s</title>\n", html.EscapeString(opts.Title))
	}
	fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="#FFFFFF"/>`+"\n")
	fmt.Fprintln(bw, `<g stroke="#000000" stroke-width="1.5" stroke-linecap="round">`)
	for b, bond := range m.Bonds {
		p, q := pos[bond.Begin], pos[bond.End]
		p, q = trim(m, bond.Begin, p, q, opts), trim(m, bond.End, q, p, opts)
		inner := innerSide(m, ri, b, pos)
		switch {
		case bond.Order == molecule.BondAromatic:
			line(bw, p, q, "")
			off := offsetLine(p, q, inner*opts.BondSpacing*1.5, 0.15)
			line(bw, off[0], off[1], ` stroke-dasharray="3,2"`)
		case bond.Order == molecule.BondDouble && inner != 0:
			line(bw, p, q, "")
			off := offsetLine(p, q, inner*opts.BondSpacing*1.5, 0.15)
			line(bw, off[0], off[1], "")
		case bond.Order == molecule.BondDouble:
			for _, s := range []float64{-0.5, 0.5} {
				off := offsetLine(p, q, s*opts.BondSpacing*1.5, 0)
				line(bw, off[0], off[1], "")
			}
		case bond.Order == molecule.BondTriple:
			line(bw, p, q, "")
			for _, s := range []float64{-1, 1} {
				off := offsetLine(p, q, s*opts.BondSpacing, 0)
				line(bw, off[0], off[1], "")
			}
		default:
			line(bw, p, q, "")
		}
	}
	fmt.Fprintln(bw, "</g>")

	fmt.Fprintf(bw, `<g font-family="sans-serif" font-size="%.0f" text-anchor="middle" dominant-baseline="central">`+"\n", opts.FontSize)
	for i, a := range m.Atoms {
		text := AtomLabel(m, i)
		if text == "" {
			continue
		}
		fmt.Fprintf(bw, `<text x="%.2f" y="%.2f" fill="%s">%s</text>`+"\n",
			pos[i].X, pos[i].Y, labelColor(a), html.EscapeString(text))
	}
	fmt.Fprintln(bw, "</g>")
	fmt.Fprintln(bw, "</svg>")
	return bw.Flush()
}

// AtomLabel is the text drawn for atom i, empty for skeletal carbons.
func AtomLabel(m *molecule.Molecule, i int) string {
	a := m.Atoms[i]
	if a.Symbol == "C" && a.Charge == 0 && a.Isotope == 0 && m.Degree(i) > 0 {
		return ""
	}
	var sb strings.Builder
	if a.Isotope > 0 {
		fmt.Fprintf(&sb, "%d", a.Isotope)
	}
	sb.WriteString(a.Symbol)
	if a.HCount > 0 {
		sb.WriteString("H")
		if a.HCount > 1 {
			sb.WriteString(molecule.Subscript(fmt.Sprint(a.HCount)))
		}
	}
	switch {
	case a.Charge == 1:
		sb.WriteString("+")
	case a.Charge == -1:
		sb.WriteString("−")
	case a.Charge > 1:
		fmt.Fprintf(&sb, "%d+", a.Charge)
	case a.Charge < -1:
		fmt.Fprintf(&sb, "%d−", -a.Charge)
	}
	return sb.String()
}

func labelColor(a molecule.Atom) string {
	switch a.Symbol {
	case "C", "H":
		return "#000000"
	}
	return a.Element().Color
}

// fit scales and translates layout coordinates into the drawing area,
// flipping y so that the layout's upward direction is drawn upwards.
func fit(pos []r2.Vec, opts Options) []r2.Vec {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range pos {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	w := float64(opts.Width) - 2*opts.Padding
	h := float64(opts.Height) - 2*opts.Padding
	spanX, spanY := maxX-minX, maxY-minY
	scale := 40.0
	if spanX > 0 {
		scale = math.Min(scale, w/spanX)
	}
	if spanY > 0 {
		scale = math.Min(scale, h/spanY)
	}
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	out := make([]r2.Vec, len(pos))
	for i, p := range pos {
		out[i] = r2.Vec{
			X: float64(opts.Width)/2 + (p.X-cx)*scale,
			Y: float64(opts.Height)/2 - (p.Y-cy)*scale,
		}
	}
	return out
}

// trim shortens the segment from p towards q when atom a carries a label.
func trim(m *molecule.Molecule, a int, p, q r2.Vec, opts Options) r2.Vec {
	if AtomLabel(m, a) == "" {
		return p
	}
	d := r2.Sub(q, p)
	n := r2.Norm(d)
	cut := opts.FontSize * 0.6
	if n <= 2*cut {
		return p
	}
	return r2.Add(p, r2.Scale(cut/n, d))
}

// innerSide returns +1 or -1 for the side of bond b facing the centre of
// its smallest ring, or 0 for acyclic bonds.
func innerSide(m *molecule.Molecule, ri *molecule.RingInfo, b int, pos []r2.Vec) float64 {
	rings := ri.RingsOfBond(b)
	if len(rings) == 0 {
		return 0
	}
	best := ri.Rings[rings[0]]
	for _, r := range rings[1:] {
		if ri.Rings[r].Size() < best.Size() {
			best = ri.Rings[r]
		}
	}
	var c r2.Vec
	for _, a := range best.Atoms {
		c = r2.Add(c, pos[a])
	}
	c = r2.Scale(1/float64(best.Size()), c)
	bond := m.Bonds[b]
	p, q := pos[bond.Begin], pos[bond.End]
	if r2.Cross(r2.Sub(q, p), r2.Sub(c, p)) >= 0 {
		return 1
	}
	return -1
}

// offsetLine returns p-q moved sideways by dist pixels and shortened at both
// ends by shrink (a fraction of its length).
func offsetLine(p, q r2.Vec, dist, shrink float64) [2]r2.Vec {
	d := r2.Sub(q, p)
	n := r2.Norm(d)
	if n == 0 {
		return [2]r2.Vec{p, q}
	}
	normal := r2.Vec{X: -d.Y / n, Y: d.X / n}
	shift := r2.Scale(dist, normal)
	return [2]r2.Vec{
		r2.Add(r2.Add(p, r2.Scale(shrink, d)), shift),
		r2.Add(r2.Sub(q, r2.Scale(shrink, d)), shift),
	}
}

func line(w io.Writer, p, q r2.Vec, attrs string) {
	fmt.Fprintf(w, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"%s/>`+"\n", p.X, p.Y, q.X, q.Y, attrs)
}
