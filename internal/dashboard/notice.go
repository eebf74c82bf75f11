package dashboard

import (
	"time"

	"github.com/google/uuid"
)

// NoticeLevel grades a Notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-visible message about an action outcome.
type Notice struct {
	ID      uuid.UUID   `json:"id"`
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// Notices returns the retained notices, newest last.
func (d *Dashboard) Notices() []Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Notice(nil), d.notices...)
}

// DismissNotice removes one notice. It reports whether it was present.
func (d *Dashboard) DismissNotice(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, n := range d.notices {
		if n.ID == id {
			d.notices = append(d.notices[:i:i], d.notices[i+1:]...)
			return true
		}
	}
	return false
}

// notify appends a notice, dropping the oldest beyond MaxNotices. The caller
// holds d.mu.
func (d *Dashboard) notify(level NoticeLevel, msg string) Notice {
	n := Notice{ID: uuid.New(), Level: level, Message: msg, At: time.Now().UTC()}
	d.notices = append(d.notices, n)
	if over := len(d.notices) - d.opts.MaxNotices; over > 0 {
		d.notices = append([]Notice(nil), d.notices[over:]...)
	}
	return n
}
