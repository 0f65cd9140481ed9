package session

// ChanSvc is a single-goroutine executor. Every function sent on it runs on
// the goroutine started by RunSvc, one at a time, so state touched only from
// queued functions needs no locking. A nil function stops the executor.
type ChanSvc chan func()

// Svc queues code without blocking the caller.
func Svc(s ChanSvc, code func()) {
	go func() { s <- code }()
}

// SvcSync runs code on s and waits for its result.
func SvcSync[T any](s ChanSvc, code func() (T, error)) (T, error) {
	done := make(chan struct{})
	var value T
	var err error
	Svc(s, func() {
		defer close(done)
		value, err = code()
	})
	<-done
	return value, err
}

// RunSvc starts the executor goroutine.
func RunSvc(s ChanSvc) {
	go func() {
		for cmd := range s {
			if cmd == nil {
				return
			}
			cmd()
		}
	}()
}
