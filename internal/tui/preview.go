package tui

import (
	"strconv"
	"strings"

	"github.com/agbru/deepzoom/internal/pipeline"
)

const halfBlock = "▀"

// previewSize returns the pixel size of a preview filling cols×rows cells.
// Each cell shows two vertically stacked pixels.
func previewSize(cols, rows int) (width, height int) {
	return max(cols, 1), 2 * max(rows, 1)
}

// RenderPreview draws f into cols×rows terminal cells with upper-half-block
// characters: the foreground is the upper pixel and the background the
// lower one. Frames of another size are sampled nearest-neighbour, so a
// stale frame still fills the area while the next one renders.
func RenderPreview(f pipeline.Frame, cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	if f.Width <= 0 || f.Height <= 0 || len(f.Pix) != 4*f.Width*f.Height {
		return blankPreview(cols, rows)
	}

	var b strings.Builder
	b.Grow(rows * (cols*40 + 8))
	buf := make([]byte, 0, 48)
	for row := range rows {
		top := (2 * row) * f.Height / (2 * rows)
		bot := (2*row + 1) * f.Height / (2 * rows)
		for col := range cols {
			x := col * f.Width / cols
			up := 4 * (top*f.Width + x)
			lo := 4 * (bot*f.Width + x)
			buf = buf[:0]
			buf = appendSGR(buf, 38, f.Pix[up], f.Pix[up+1], f.Pix[up+2])
			buf = appendSGR(buf, 48, f.Pix[lo], f.Pix[lo+1], f.Pix[lo+2])
			b.Write(buf)
			b.WriteString(halfBlock)
		}
		b.WriteString("\x1b[0m")
		if row < rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// appendSGR appends a 24-bit color escape; layer is 38 (fg) or 48 (bg).
func appendSGR(dst []byte, layer int, r, g, b byte) []byte {
	dst = append(dst, "\x1b["...)
	dst = strconv.AppendInt(dst, int64(layer), 10)
	dst = append(dst, ";2;"...)
	dst = strconv.AppendUint(dst, uint64(r), 10)
	dst = append(dst, ';')
	dst = strconv.AppendUint(dst, uint64(g), 10)
	dst = append(dst, ';')
	dst = strconv.AppendUint(dst, uint64(b), 10)
	return append(dst, 'm')
}

func blankPreview(cols, rows int) string {
	line := strings.Repeat(" ", cols)
	lines := make([]string, rows)
	for i := range lines {
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
