package botkit

import "strings"

const mdV2Specials = "_*[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 escapes the characters Telegram's MarkdownV2 parse mode
// treats as markup, so arbitrary record fields render verbatim.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 128 && strings.ContainsRune(mdV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
