package core

// Frame is one encoded protocol message.
type Frame []byte

// SignalConnection abstracts the per-connection messaging transport.
// TrySend must never block: the hub loop calls it while handling other
// connections' messages. Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
