package hnsw

// InfoComponent is the component name used for all diagnostic messages.
const InfoComponent = "HNSW"

// InfoStream receives diagnostic messages from builders and mergers.
type InfoStream interface {
	Enabled(component string) bool
	Message(component, msg string)
}

// NoopInfoStream discards all messages.
type NoopInfoStream struct{}

func (NoopInfoStream) Enabled(string) bool { return false }

func (NoopInfoStream) Message(string, string) {}

func infoStreamOrNoop(s InfoStream) InfoStream {
	if s == nil {
		return NoopInfoStream{}
	}
	return s
}
