package registry

import "context"

// Mail write operations reported to listeners
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpMarkRead = "mark_read"
)

// MailEvent describes a committed write to a mail item
type MailEvent struct {
	Direction Direction
	Op        string
	MailID    int64
}

// MailListener is called after a mail write has been committed. Listeners
// must not block; they run on the request goroutine.
type MailListener func(ctx context.Context, event MailEvent)

// MailListeners fans an event out to every listener
type MailListeners []MailListener

// Notify calls every listener in order
func (ls MailListeners) Notify(ctx context.Context, event MailEvent) {
	for _, l := range ls {
		if l != nil {
			l(ctx, event)
		}
	}
}
