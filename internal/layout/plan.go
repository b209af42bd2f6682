package layout

// HeightFunc measures the wrapped height of b within maxWidth.
type HeightFunc func(b Block, maxWidth float64) float64

// Placement is a measured block and the top of its first line box.
type Placement struct {
	Block  Block
	Height float64
	Y      float64
}

// Plan is the vertical arrangement of one render.
type Plan struct {
	Format          Format
	Width, Height   float64
	Padding         float64
	ContentWidth    float64
	ContentTop      float64
	AvailableHeight float64
	Spacing         float64
	TotalHeight     float64
	StartY          float64
	Placements      []Placement
}

// Overflows reports whether the stack is taller than the content region.
// An overflowing plan is still painted; the bottom blocks run off the canvas.
func (p Plan) Overflows() bool {
	return p.TotalHeight > p.AvailableHeight
}

// Build measures blocks and centers the stack vertically between the top
// padding (1.5x the side padding) and the bottom padding.
func Build(f Format, blocks []Block, measure HeightFunc) Plan {
	w, h := f.Size()
	width, height := float64(w), float64(h)
	padding := width * PaddingFraction
	contentTop := padding * TopPaddingFactor
	contentBottom := height - padding

	p := Plan{
		Format:          f,
		Width:           width,
		Height:          height,
		Padding:         padding,
		ContentWidth:    width - 2*padding,
		ContentTop:      contentTop,
		AvailableHeight: contentBottom - contentTop,
		Spacing:         Spacing(f, blocks),
		Placements:      make([]Placement, len(blocks)),
	}

	for i, b := range blocks {
		p.Placements[i] = Placement{Block: b, Height: measure(b, p.ContentWidth)}
		p.TotalHeight += p.Placements[i].Height
	}
	if len(blocks) > 1 {
		p.TotalHeight += float64(len(blocks)-1) * p.Spacing
	}

	p.StartY = contentTop + (p.AvailableHeight-p.TotalHeight)/2
	y := p.StartY
	for i := range p.Placements {
		p.Placements[i].Y = y
		y += p.Placements[i].Height + p.Spacing
	}
	return p
}

// Spacing is the gap between blocks: SpacingFactor times the size of the
// main translation block, or of the story body for narratives.
func Spacing(f Format, blocks []Block) float64 {
	for _, b := range blocks {
		if b.Role == RoleTranslation || b.Role == RoleBody {
			return b.Style.Size * SpacingFactor
		}
	}
	return StyleFor(RoleTranslation, f).Size * SpacingFactor
}
