package markup

import "strings"

// Символы, которые MarkdownV2 требует экранировать в обычном тексте
var replacer = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// EscapeForMarkdown экранирует текст для сообщений телеграма с ParseMode MarkdownV2
func EscapeForMarkdown(src string) string {
	return replacer.Replace(src)
}
