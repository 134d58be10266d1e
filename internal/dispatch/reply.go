package dispatch

import "sync"

// reply delivers at most one Response. The channel is buffered so delivery never
// blocks the sender, and later deliveries are dropped.
type reply struct {
	once sync.Once
	ch   chan Response
}

func newReply() *reply {
	return &reply{ch: make(chan Response, 1)}
}

// deliver sends resp if nothing was delivered before and reports whether it did.
func (r *reply) deliver(resp Response) bool {
	if r == nil {
		return false
	}
	sent := false
	r.once.Do(func() {
		r.ch <- resp
		sent = true
	})
	return sent
}
