package preview

import (
	"slices"
	"strings"

	"vitaeforge/internal/cvs"
)

// DefaultAccentColor is used when the requested colour is not in the palette.
const DefaultAccentColor = "#64B5F6"

// FontStyle is the CSS needed for one typeface.
type FontStyle struct {
	Family string
	// Import is the stylesheet URL that provides the face.
	Import string
}

// FontMap maps supported fonts to their CSS.
var FontMap = map[cvs.Font]FontStyle{
	cvs.FontPoppins: {
		Family: "'Poppins', sans-serif",
		Import: "https://fonts.googleapis.com/css2?family=Poppins:wght@400;600;700&display=swap",
	},
	cvs.FontPTSans: {
		Family: "'PT Sans', sans-serif",
		Import: "https://fonts.googleapis.com/css2?family=PT+Sans:wght@400;700&display=swap",
	},
	cvs.FontInter: {
		Family: "'Inter', sans-serif",
		Import: "https://fonts.googleapis.com/css2?family=Inter:wght@400;600;700&display=swap",
	},
}

// AccentColor returns c when it is in the palette, else the default.
func AccentColor(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c != "" && !strings.HasPrefix(c, "#") {
		c = "#" + c
	}
	if slices.Contains(cvs.AccentColors, c) {
		return c
	}
	return DefaultAccentColor
}

// FontFor returns f when supported, else poppins.
func FontFor(f string) cvs.Font {
	font := cvs.Font(strings.ToLower(strings.TrimSpace(f)))
	if _, ok := FontMap[font]; ok {
		return font
	}
	return cvs.FontPoppins
}
