// Package chart turns a category summary into SVG pie geometry that the
// summary template renders directly.
package chart

import (
	"fmt"
	"math"
	"strconv"

	"expenses/internal/core"
)

// Palette is cycled over the summary rows in order.
var Palette = []string{"#8884d8", "#82ca9d", "#ffc658", "#ff8042", "#8dd1e1", "#d0ed57", "#a4de6c"}

// Color returns the palette colour for row i.
func Color(i int) string {
	return Palette[i%len(Palette)]
}

// Slice is one wedge of the pie.
type Slice struct {
	Category string
	Color    string
	Percent  float64
	// Path is the SVG path data of the wedge. Empty when Full is set.
	Path string
	// Full marks a single slice covering the whole pie; draw a circle.
	Full bool
	// LabelX, LabelY position the label just outside the wedge.
	LabelX, LabelY string
	Anchor         string
	Label          string
}

// Pie is a chart centred in a Width x Height view box.
type Pie struct {
	Width, Height int
	CX, CY, R     string
	Slices        []Slice
}

// labelGap is how far outside the rim labels sit, as a fraction of the radius.
const labelGap = 0.2

// NewPie lays out rows clockwise from 12 o'clock. Rows with no spending get
// no wedge but still consume a palette colour so the legend matches.
func NewPie(rows []core.CategoryTotal, radius float64) Pie {
	margin := radius * 1.2
	size := 2 * (radius + margin)
	cx, cy := size/2, radius+margin*0.5
	p := Pie{
		Width:  int(math.Ceil(size)),
		Height: int(math.Ceil(2*radius + margin)),
		CX:     num(cx),
		CY:     num(cy),
		R:      num(radius),
	}

	var total int64
	for _, r := range rows {
		if r.Total.Cents > 0 {
			total += r.Total.Cents
		}
	}
	if total == 0 {
		return p
	}

	angle := -math.Pi / 2
	for i, r := range rows {
		if r.Total.Cents <= 0 {
			continue
		}
		frac := float64(r.Total.Cents) / float64(total)
		sweep := frac * 2 * math.Pi
		s := Slice{
			Category: r.Category,
			Color:    Color(i),
			Percent:  frac * 100,
			Label:    fmt.Sprintf("%s: %.1f%%", r.Category, frac*100),
		}

		if frac >= 1 {
			s.Full = true
		} else {
			x1, y1 := cx+radius*math.Cos(angle), cy+radius*math.Sin(angle)
			end := angle + sweep
			x2, y2 := cx+radius*math.Cos(end), cy+radius*math.Sin(end)
			large := 0
			if sweep > math.Pi {
				large = 1
			}
			s.Path = fmt.Sprintf("M%s,%s L%s,%s A%s,%s 0 %d 1 %s,%s Z",
				num(cx), num(cy), num(x1), num(y1), num(radius), num(radius), large, num(x2), num(y2))
		}

		mid := angle + sweep/2
		lx := cx + radius*(1+labelGap)*math.Cos(mid)
		ly := cy + radius*(1+labelGap)*math.Sin(mid)
		s.LabelX, s.LabelY = num(lx), num(ly)
		switch {
		case math.Abs(lx-cx) < radius*0.05:
			s.Anchor = "middle"
		case lx > cx:
			s.Anchor = "start"
		default:
			s.Anchor = "end"
		}

		p.Slices = append(p.Slices, s)
		angle += sweep
	}
	return p
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
