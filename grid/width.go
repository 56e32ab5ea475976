package grid

import (
	"unicode"

	"golang.org/x/text/width"
)

// RuneWidth returns the display width of a rune (0, 1, or 2 cells)
// 0 = zero-width (combining marks, null, non-printables)
// 1 = normal single-width character
// 2 = wide character (CJK, fullwidth forms)
func RuneWidth(r rune) int {
	// IsPrint rejects every space separator but U+0020
	if unicode.Is(unicode.Zs, r) {
		if width.LookupRune(r).Kind() == width.EastAsianFullwidth {
			return 2
		}
		return 1
	}
	if r == '\x00' || !unicode.IsPrint(r) {
		return 0
	}

	// Mn = Mark, Nonspacing
	// Me = Mark, Enclosing
	// Mc = Mark, Spacing Combining
	if unicode.In(r, unicode.Mn, unicode.Me, unicode.Mc) {
		return 0
	}

	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

// StringWidth returns the total display width of a string
func StringWidth(s string) int {
	w := 0
	for _, r := range s {
		w += RuneWidth(r)
	}
	return w
}
