// Package layout tests cover the style table, variant block mapping and the
// centering arithmetic of [Build].
package layout

import (
	"math"
	"reflect"
	"testing"

	"tools.zach/dev/wisdomcard/internal/content"
	"tools.zach/dev/wisdomcard/internal/fonts"
	"tools.zach/dev/wisdomcard/internal/textmetrics"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

var (
	verse = content.ScriptureVerse{
		PrimaryScript:        "بِسْمِ اللَّهِ الرَّحْمَٰنِ الرَّحِيمِ",
		Translation:          "In the name of Allah",
		SecondaryTranslation: "اللہ کے نام سے",
		Citation:             "Quran 1:1",
	}
	saying = content.Saying{
		Translation:          "Actions are judged by intentions",
		SecondaryTranslation: "اعمال کا دارومدار نیتوں پر ہے",
		Attribution:          "Umar",
		Citation:             "Bukhari 1",
	}
	story = content.Narrative{Heading: "The Ant and Sulayman", Body: "An ant called out to the others..."}
)

// ///////////////////////////////////////////////
// Formats and Styles
// ///////////////////////////////////////////////

func TestFormatSize(t *testing.T) {
	tests := []struct {
		f    Format
		w, h int
	}{
		{Square, 1080, 1080},
		{Vertical, 1080, 1920},
	}
	for _, tt := range tests {
		if w, h := tt.f.Size(); w != tt.w || h != tt.h {
			t.Errorf("%s.Size() = %dx%d, want %dx%d", tt.f, w, h, tt.w, tt.h)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"square", Square, false},
		{"POST", Square, false},
		{"1:1", Square, false},
		{"vertical", Vertical, false},
		{"reel", Vertical, false},
		{"9:16", Vertical, false},
		{"landscape", Square, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = (%v, %v)", tt.in, got, err)
		}
	}
}

func TestStyleTable(t *testing.T) {
	tests := []struct {
		role    Role
		family  fonts.Family
		size    float64
		lh      float64
		opacity float64
		dir     textmetrics.Direction
	}{
		{RolePrimaryScript, fonts.Serif, 49, 1.5, 1, textmetrics.RightToLeft},
		{RoleTranslation, fonts.SansItalic, 32, 1.4, 0.9, textmetrics.LeftToRight},
		{RoleBody, fonts.SansItalic, 28, 1.4, 0.9, textmetrics.LeftToRight},
		{RoleSecondaryTranslation, fonts.Serif, 36, 1.4, 0.85, textmetrics.RightToLeft},
		{RoleCitation, fonts.Sans, 22, 1.4, 0.7, textmetrics.LeftToRight},
		{RoleHeading, fonts.SansBold, 22, 1.4, 1, textmetrics.LeftToRight},
	}
	for _, f := range Formats {
		for _, tt := range tests {
			got := StyleFor(tt.role, f)
			want := Style{tt.family, tt.size, tt.lh, tt.opacity, tt.dir}
			if got != want {
				t.Errorf("StyleFor(%s, %s) = %+v, want %+v", tt.role, f, got, want)
			}
		}
	}
}

// ///////////////////////////////////////////////
// Blocks
// ///////////////////////////////////////////////

func roles(blocks []Block) []Role {
	out := make([]Role, len(blocks))
	for i, b := range blocks {
		out[i] = b.Role
	}
	return out
}

func TestBlocksOrderPerVariant(t *testing.T) {
	tests := []struct {
		name string
		v    content.Variant
		want []Role
	}{
		{"verse", verse, []Role{RolePrimaryScript, RoleTranslation, RoleSecondaryTranslation, RoleCitation}},
		{"saying", saying, []Role{RoleTranslation, RoleSecondaryTranslation, RoleCitation}},
		{"narrative", story, []Role{RoleHeading, RoleBody}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roles(Blocks(tt.v, Square)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("roles = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlocksText(t *testing.T) {
	b := Blocks(saying, Vertical)
	if b[0].Text != `"Actions are judged by intentions"` {
		t.Errorf("translation text = %q", b[0].Text)
	}
	if b[2].Text != "Umar, Bukhari 1" {
		t.Errorf("citation text = %q", b[2].Text)
	}
	if b[2].Style.Opacity >= b[0].Style.Opacity {
		t.Error("citation should be de-emphasized relative to the translation")
	}

	n := Blocks(story, Square)
	if n[1].Text != `"An ant called out to the others..."` {
		t.Errorf("story body text = %q", n[1].Text)
	}
}

func TestBlocksOmitEmptyFields(t *testing.T) {
	v := content.ScriptureVerse{Translation: "Be patient", Citation: "Quran 2:153"}
	if got := roles(Blocks(v, Square)); !reflect.DeepEqual(got, []Role{RoleTranslation, RoleCitation}) {
		t.Errorf("roles = %v", got)
	}
	if got := Blocks(content.Narrative{}, Square); len(got) != 0 {
		t.Errorf("empty narrative produced %d blocks", len(got))
	}
}

func TestBlocksAcceptPointerAndNil(t *testing.T) {
	v := verse
	if got, want := Blocks(&v, Vertical), Blocks(verse, Vertical); !reflect.DeepEqual(got, want) {
		t.Errorf("pointer blocks = %+v, want %+v", got, want)
	}
	if got := Blocks(nil, Square); len(got) != 0 {
		t.Errorf("nil content produced %d blocks", len(got))
	}
	if got := Blocks((*content.Saying)(nil), Square); len(got) != 0 {
		t.Errorf("nil saying produced %d blocks", len(got))
	}
}

// ///////////////////////////////////////////////
// Build
// ///////////////////////////////////////////////

func fixedHeight(h float64) HeightFunc {
	return func(Block, float64) float64 { return h }
}

func TestBuildCentersStack(t *testing.T) {
	p := Build(Square, Blocks(saying, Square), fixedHeight(100))

	if !near(p.Padding, 86.4) || !near(p.ContentWidth, 907.2) {
		t.Errorf("padding = %v, content width = %v", p.Padding, p.ContentWidth)
	}
	if !near(p.ContentTop, 129.6) || !near(p.AvailableHeight, 864) {
		t.Errorf("content top = %v, available = %v", p.ContentTop, p.AvailableHeight)
	}
	if p.Spacing != 48 {
		t.Errorf("spacing = %v, want 48 (1.5 x 32)", p.Spacing)
	}
	if p.TotalHeight != 396 {
		t.Errorf("total = %v, want 3*100 + 2*48", p.TotalHeight)
	}
	if !near(p.StartY, 363.6) {
		t.Errorf("startY = %v, want 363.6", p.StartY)
	}
	wantY := []float64{363.6, 511.6, 659.6}
	for i, pl := range p.Placements {
		if !near(pl.Y, wantY[i]) {
			t.Errorf("placement %d y = %v, want %v", i, pl.Y, wantY[i])
		}
	}
	// The stack is symmetric about the center of the content region.
	mid := p.ContentTop + p.AvailableHeight/2
	if !near(p.StartY+p.TotalHeight/2, mid) {
		t.Errorf("stack center %v, region center %v", p.StartY+p.TotalHeight/2, mid)
	}
	if p.Overflows() {
		t.Error("396px stack should fit in 864px")
	}
}

func TestBuildNarrativeSpacingUsesBody(t *testing.T) {
	p := Build(Vertical, Blocks(story, Vertical), fixedHeight(50))
	if p.Spacing != 42 {
		t.Errorf("spacing = %v, want 42 (1.5 x 28)", p.Spacing)
	}
	if p.Height != 1920 || !near(p.AvailableHeight, 1920-86.4-129.6) {
		t.Errorf("vertical geometry: height %v available %v", p.Height, p.AvailableHeight)
	}
}

func TestBuildSingleAndEmpty(t *testing.T) {
	one := Build(Square, Blocks(content.Narrative{Heading: "Only"}, Square), fixedHeight(30))
	if one.TotalHeight != 30 {
		t.Errorf("single block total = %v, want no spacing added", one.TotalHeight)
	}
	none := Build(Square, nil, fixedHeight(30))
	if none.TotalHeight != 0 || len(none.Placements) != 0 {
		t.Errorf("empty plan = %+v", none)
	}
}

func TestBuildOverflowIsReportedNotClamped(t *testing.T) {
	p := Build(Square, Blocks(verse, Square), fixedHeight(400))
	if !p.Overflows() {
		t.Fatal("expected overflow")
	}
	if p.StartY >= p.ContentTop {
		t.Errorf("overflowing stack should start above the content top, got %v", p.StartY)
	}
	last := p.Placements[len(p.Placements)-1]
	if last.Y+last.Height <= p.Height-p.Padding {
		t.Error("bottom block should run past the bottom padding")
	}
}

func TestBuildIsPure(t *testing.T) {
	measure := func(b Block, w float64) float64 {
		return float64(len(b.Text)%7+1) * b.Style.LinePixels()
	}
	for _, v := range []content.Variant{verse, saying, story} {
		for _, f := range Formats {
			a := Build(f, Blocks(v, f), measure)
			b := Build(f, Blocks(v, f), measure)
			if !reflect.DeepEqual(a, b) {
				t.Errorf("%T/%s: plans differ", v, f)
			}
		}
	}
}

func TestBuildNeverMeasuresPrimaryScriptForSaying(t *testing.T) {
	var seen []Role
	Build(Square, Blocks(saying, Square), func(b Block, w float64) float64 {
		seen = append(seen, b.Role)
		if w != Build(Square, nil, fixedHeight(0)).ContentWidth {
			t.Errorf("measured with width %v", w)
		}
		return 10
	})
	for _, r := range seen {
		if r == RolePrimaryScript {
			t.Fatal("saying measured a primary-script block")
		}
	}
	if len(seen) != 3 {
		t.Errorf("measured %d blocks, want 3", len(seen))
	}
}
