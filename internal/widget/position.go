package widget

import "fmt"

// PositionStyle returns the CSS offsets for the floating button. Unknown positions use the
// bottom-right layout; spacing is used verbatim as a pixel count.
func PositionStyle(position Position, spacing string) string {
	spacingPixels := spacing + "px"
	switch position {
	case PositionBottomLeft:
		return fmt.Sprintf("bottom: %s; left: %s;", spacingPixels, spacingPixels)
	case PositionTopRight:
		return fmt.Sprintf("top: %s; right: %s;", spacingPixels, spacingPixels)
	case PositionTopLeft:
		return fmt.Sprintf("top: %s; left: %s;", spacingPixels, spacingPixels)
	default:
		return fmt.Sprintf("bottom: %s; right: %s;", spacingPixels, spacingPixels)
	}
}
