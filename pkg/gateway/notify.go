package gateway

import "sync"

// Toast is a short user-facing notification.
type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Destructive bool   `json:"destructive,omitempty"`
}

// Notifier shows toasts.
type Notifier interface {
	Notify(Toast)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }

// ToastLog keeps the most recent toasts for clients that poll for them.
type ToastLog struct {
	mu     sync.Mutex
	limit  int
	toasts []Toast
}

// NewToastLog returns a log holding at most limit toasts.
func NewToastLog(limit int) *ToastLog {
	if limit <= 0 {
		limit = 20
	}
	return &ToastLog{limit: limit}
}

func (l *ToastLog) Notify(t Toast) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.toasts = append(l.toasts, t)
	if over := len(l.toasts) - l.limit; over > 0 {
		l.toasts = l.toasts[over:]
	}
}

// Drain returns the logged toasts, oldest first, and empties the log.
func (l *ToastLog) Drain() []Toast {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.toasts
	l.toasts = nil
	return out
}
