package service

import (
	"fmt"
	"strings"

	"lemmylink/internal/constants"
	"lemmylink/internal/models"
)

// ThreadTitle derives the mirror thread title from a trigger
func ThreadTitle(trigger models.Trigger) string {
	switch t := trigger.(type) {
	case models.ThreadTrigger:
		return truncateRunes(t.Title, constants.MirrorTitleMaxRunes)
	case models.CommentTrigger:
		collapsed := strings.Join(strings.Fields(t.Body), " ")
		if collapsed == "" {
			return truncateRunes(t.Thread.Title, constants.MirrorTitleMaxRunes)
		}
		runes := []rune(collapsed)
		if len(runes) <= constants.CommentTitleExcerptRunes {
			return collapsed
		}
		return string(runes[:constants.CommentTitleExcerptRunes]) + constants.TitleEllipsis
	}
	return ""
}

// ThreadBody renders the markdown body of the mirror thread
func ThreadBody(trigger models.Trigger) string {
	var b strings.Builder

	switch t := trigger.(type) {
	case models.ThreadTrigger:
		fmt.Fprintf(&b, "Reddit user /u/%s triggered a Lemmy link!\n\n", t.Author)
		fmt.Fprintf(&b, "**Original Reddit Post:** [%s](%s)\n\n", t.Title, firstNonEmpty(t.URL, t.Permalink))
		b.WriteString("**Triggered Content:**\n\n")
		b.WriteString(quote(firstNonEmpty(strings.TrimSpace(t.Body), t.Title)))
		fmt.Fprintf(&b, "\n\nLink to Post: %s", t.Permalink)
	case models.CommentTrigger:
		fmt.Fprintf(&b, "Reddit user /u/%s triggered a Lemmy link!\n\n", t.Author)
		fmt.Fprintf(&b, "**Original Reddit Post:** [%s](%s)\n\n", t.Thread.Title, t.Thread.URL)
		b.WriteString("**Triggered Content:**\n\n")
		b.WriteString(quote(t.Body))
		fmt.Fprintf(&b, "\n\nLink to Comment: %s", t.Permalink)
	}

	return b.String()
}

// AckReply is posted on the origin platform once the mirror thread exists
func AckReply(mirrorThreadURL string) string {
	return fmt.Sprintf("LemmyLink bot here!\n\nI've created a corresponding post on Lemmy: %s\n\n"+
		"Stay tuned for future updates (e.g., comment syncing)!", mirrorThreadURL)
}

// FormatMirrorComment renders an origin comment for posting on the mirror
func FormatMirrorComment(c models.Comment) string {
	author := "/u/" + c.Author
	if c.AuthorURL != "" {
		author = fmt.Sprintf("[/u/%s](%s)", c.Author, c.AuthorURL)
	}
	return fmt.Sprintf("From Reddit user %s ([Link to Reddit Comment](%s))\n\n%s", author, c.Permalink, c.Body)
}

// FormatOriginComment renders a mirror comment for posting back on the origin
func FormatOriginComment(c models.Comment) string {
	author := c.Author
	if c.AuthorURL != "" {
		author = fmt.Sprintf("[%s](%s)", c.Author, c.AuthorURL)
	}
	return fmt.Sprintf("From Lemmy user %s ([Link to Lemmy Comment](%s))\n\n%s", author, c.Permalink, c.Body)
}

func quote(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-len([]rune(constants.TitleEllipsis))]) + constants.TitleEllipsis
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
