package signup

import (
	"context"
	"sync"
)

// LogNotifier writes notifications to a Logger
type LogNotifier struct {
	Logger Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, msg Notification) {
	normalizeLogger(n.Logger).Info("notify: %s", msg.Title)
}

// Recorder captures notifications and navigation of one request so a
// transport can apply them once the workflow settles.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
	paths         []string
}

var (
	_ Notifier  = (*Recorder)(nil)
	_ Navigator = (*Recorder)(nil)
)

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// Navigate implements Navigator.
func (r *Recorder) Navigate(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

func (r *Recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// LastPath returns the last navigation target and whether there was one
func (r *Recorder) LastPath() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return "", false
	}
	return r.paths[len(r.paths)-1], true
}

// LastNotification returns the last notification and whether there was one
func (r *Recorder) LastNotification() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return Notification{}, false
	}
	return r.notifications[len(r.notifications)-1], true
}
