package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"lemmylink/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestThreadTitle(t *testing.T) {
	long := strings.Repeat("word ", 20)

	tests := []struct {
		name    string
		trigger models.Trigger
		want    string
	}{
		{
			name:    "thread title verbatim",
			trigger: models.ThreadTrigger{Title: "LemmyLink! Should we move?"},
			want:    "LemmyLink! Should we move?",
		},
		{
			name:    "short comment body",
			trigger: models.CommentTrigger{Body: "  bridge\nthis LemmyLink!  "},
			want:    "bridge this LemmyLink!",
		},
		{
			name:    "long comment body truncated",
			trigger: models.CommentTrigger{Body: long},
			want:    strings.Repeat("word ", 10)[:50] + "...",
		},
		{
			name:    "empty comment body falls back to thread title",
			trigger: models.CommentTrigger{Body: " \n ", Thread: models.ThreadRef{Title: "Weekly thread"}},
			want:    "Weekly thread",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ThreadTitle(tt.trigger))
		})
	}
}

func TestThreadTitle_CapsLongThreadTitle(t *testing.T) {
	title := strings.Repeat("é", 250)
	got := ThreadTitle(models.ThreadTrigger{Title: title})

	assert.Equal(t, 200, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestThreadBody_CommentTrigger(t *testing.T) {
	body := ThreadBody(models.CommentTrigger{
		ID:        "c77",
		Body:      "first line\nsecond line LemmyLink!",
		Author:    "alice",
		Permalink: "https://www.reddit.com/r/test/comments/abc123/_/c77/",
		Thread:    models.ThreadRef{ID: "abc123", Title: "Weekly thread", URL: "https://example.com/article"},
	})

	want := "Reddit user /u/alice triggered a Lemmy link!\n\n" +
		"**Original Reddit Post:** [Weekly thread](https://example.com/article)\n\n" +
		"**Triggered Content:**\n\n" +
		"> first line\n> second line LemmyLink!\n\n" +
		"Link to Comment: https://www.reddit.com/r/test/comments/abc123/_/c77/"
	assert.Equal(t, want, body)
}

func TestThreadBody_ThreadTrigger(t *testing.T) {
	permalink := "https://www.reddit.com/r/test/comments/abc123/move/"

	withBody := ThreadBody(models.ThreadTrigger{Title: "Move?", Body: "LemmyLink! now", Author: "bob", Permalink: permalink})
	assert.Contains(t, withBody, "Reddit user /u/bob triggered a Lemmy link!")
	assert.Contains(t, withBody, "**Original Reddit Post:** [Move?]("+permalink+")")
	assert.Contains(t, withBody, "> LemmyLink! now")
	assert.True(t, strings.HasSuffix(withBody, "Link to Post: "+permalink))

	linkPost := ThreadBody(models.ThreadTrigger{Title: "LemmyLink! article", Author: "bob", Permalink: permalink, URL: "https://news.example/story"})
	assert.Contains(t, linkPost, "[LemmyLink! article](https://news.example/story)")
	assert.Contains(t, linkPost, "> LemmyLink! article")
}

func TestAckReply(t *testing.T) {
	reply := AckReply("https://lemmy.example/post/42")
	assert.True(t, strings.HasPrefix(reply, "LemmyLink bot here!"))
	assert.Contains(t, reply, "I've created a corresponding post on Lemmy: https://lemmy.example/post/42")
}

func TestFormatMirrorComment(t *testing.T) {
	c := models.Comment{
		Author:    "alice",
		AuthorURL: "https://www.reddit.com/user/alice",
		Body:      "hi",
		Permalink: "https://www.reddit.com/r/test/comments/abc123/_/c1/",
	}
	assert.Equal(t,
		"From Reddit user [/u/alice](https://www.reddit.com/user/alice) ([Link to Reddit Comment](https://www.reddit.com/r/test/comments/abc123/_/c1/))\n\nhi",
		FormatMirrorComment(c))

	c.Author = "[deleted]"
	c.AuthorURL = ""
	assert.True(t, strings.HasPrefix(FormatMirrorComment(c), "From Reddit user /u/[deleted] ("))
}

func TestFormatOriginComment(t *testing.T) {
	c := models.Comment{
		Author:    "carol",
		AuthorURL: "https://lemmy.example/u/carol",
		Body:      "hello",
		Permalink: "https://lemmy.example/comment/501",
	}
	assert.Equal(t,
		"From Lemmy user [carol](https://lemmy.example/u/carol) ([Link to Lemmy Comment](https://lemmy.example/comment/501))\n\nhello",
		FormatOriginComment(c))
}
