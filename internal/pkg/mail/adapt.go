package mail

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	carrierBodyLimit    = 500
	carrierSubjectLimit = 20
)

var (
	// whole lines made of decoration characters
	separatorLine = regexp.MustCompile(`(?m)^[ \t　]*[-=_~*#+━─═―‐・.。◆◇■□●○★☆※…]{3,}[ \t　]*$`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`(?m)[ \t　]+$`)

	bulletReplacer = strings.NewReplacer(
		"●", "-", "○", "-", "◆", "-", "◇", "-", "■", "-", "□", "-",
		"★", "*", "☆", "*", "▶", ">", "▷", ">", "►", ">", "→", "->",
		"・", "-", "•", "-", "※", "*", "✓", "-", "✔", "-",
	)
	bracketReplacer = strings.NewReplacer(
		"【", "[", "】", "]", "《", "[", "》", "]",
		"〔", "[", "〕", "]", "［", "[", "］", "]",
		"〈", "[", "〉", "]", "『", "[", "』", "]",
	)
	subjectDecorations = strings.NewReplacer(
		"【", "", "】", "", "《", "", "》", "", "〔", "", "〕", "",
		"［", "", "］", "", "★", "", "☆", "", "◆", "", "■", "", "●", "",
		"!", "", "！", "",
	)
)

// AdaptForCarrier rewrites a message for legacy carrier gateways.
func AdaptForCarrier(msg Message) Message {
	out := msg
	out.Body = adaptBody(msg.Body)
	out.Subject = adaptSubject(msg.Subject)
	return out
}

func adaptBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = separatorLine.ReplaceAllString(body, "")
	body = bulletReplacer.Replace(body)
	body = bracketReplacer.Replace(body)
	body = trailingSpace.ReplaceAllString(body, "")
	body = blankRuns.ReplaceAllString(body, "\n\n")
	body = strings.TrimSpace(body)
	return truncateRunes(body, carrierBodyLimit)
}

func adaptSubject(subject string) string {
	subject = subjectDecorations.Replace(subject)
	subject = strings.Join(strings.Fields(subject), " ")
	return truncateRunes(subject, carrierSubjectLimit)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
