package models

// Trigger is a thread or comment on the origin platform that asked to be bridged.
// The only implementations are ThreadTrigger and CommentTrigger.
type Trigger interface {
	// TriggerID is the id of the item that contained the trigger phrase
	TriggerID() string
	// OriginThreadID is the id of the thread the trigger belongs to
	OriginThreadID() string
	// ReplyTarget is where the acknowledgment reply is posted
	ReplyTarget() ReplyTarget
	AuthorHandle() string
	isTrigger()
}

// ThreadRef identifies the thread a comment trigger was posted in
type ThreadRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ThreadTrigger is a new thread whose title or body contained the trigger phrase
type ThreadTrigger struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Author    string `json:"author"`
	Permalink string `json:"permalink"`
	URL       string `json:"url"`
}

func (t ThreadTrigger) TriggerID() string      { return t.ID }
func (t ThreadTrigger) OriginThreadID() string { return t.ID }
func (t ThreadTrigger) AuthorHandle() string   { return t.Author }
func (t ThreadTrigger) ReplyTarget() ReplyTarget {
	return ReplyTarget{ID: t.ID, Kind: TargetThread}
}
func (ThreadTrigger) isTrigger() {}

// CommentTrigger is a comment whose body contained the trigger phrase
type CommentTrigger struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Permalink string    `json:"permalink"`
	Thread    ThreadRef `json:"thread"`
}

func (c CommentTrigger) TriggerID() string      { return c.ID }
func (c CommentTrigger) OriginThreadID() string { return c.Thread.ID }
func (c CommentTrigger) AuthorHandle() string   { return c.Author }
func (c CommentTrigger) ReplyTarget() ReplyTarget {
	return ReplyTarget{ID: c.ID, Kind: TargetComment}
}
func (CommentTrigger) isTrigger() {}
