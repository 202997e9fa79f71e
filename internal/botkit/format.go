package botkit

import "fmt"

// FormatAmount renders a minor-unit amount as a decimal string, e.g. 1250 -> "12.50".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ShortID renders the leading segment of a UUID for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
