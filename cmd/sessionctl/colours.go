package main

const (
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Gray   = "\033[90m" // Bright black, often appears as gray

	ResetColor = "\033[0m" // Reset to default color
)

// change markers printed by watch, with their colours
const (
	markAdded   = "+"
	markChanged = "~"
	markRemoved = "-"
)

var markColors = map[string]string{
	markAdded:   Green,
	markChanged: Yellow,
	markRemoved: Red,
}

func colorize(mark string, enabled bool) string {
	if !enabled {
		return mark
	}
	color, ok := markColors[mark]
	if !ok {
		color = Gray
	}
	return color + mark + ResetColor
}
