package receiver

// Callbacks is the capability interface the host application supplies to a
// Receiver. It is a plain struct of closures rather than an interface
// precisely so a caller can't accidentally satisfy it with a subclassed
// type that carries more surface than admission/info/delivery.
type Callbacks struct {
	// OnReady is admission control, called exactly once per START. A false
	// return ends the session with a NOGO and no Blob is created.
	OnReady func(dataSize uint64) bool

	// OnInfo is a diagnostic sink; must tolerate being called from the
	// receiver's own goroutine and must not block indefinitely.
	OnInfo func(text string)

	// OnComplete is delivery: called at most once per Blob, synchronously
	// from the receiver loop. bytes is owned by the callback from the
	// moment it is invoked; the receiver keeps no reference afterward.
	OnComplete func(senderID string, bytes []byte)
}

func (c Callbacks) ready(dataSize uint64) bool {
	if c.OnReady == nil {
		return true
	}
	return c.OnReady(dataSize)
}

func (c Callbacks) info(text string) {
	if c.OnInfo != nil {
		c.OnInfo(text)
	}
}

func (c Callbacks) complete(senderID string, bytes []byte) {
	if c.OnComplete != nil {
		c.OnComplete(senderID, bytes)
	}
}
