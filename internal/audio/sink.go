package audio

import "github.com/rs/zerolog/log"

// SinkEvent notifies the playback engine that the decode pipeline
// started or stopped delivering audio to the bridge.
type SinkEvent int

const (
	SinkStart SinkEvent = iota
	SinkStop
)

// Sink adapts the decode pipeline's synchronous sink calls onto a
// Bridge. Start/Stop signals are forwarded best-effort: if the engine
// is gone or slow the signal is dropped rather than blocking the
// decode thread.
type Sink struct {
	bridge  *Bridge
	signals chan<- SinkEvent
}

func NewSink(bridge *Bridge, signals chan<- SinkEvent) *Sink {
	return &Sink{bridge: bridge, signals: signals}
}

func (s *Sink) Start() {
	select {
	case s.signals <- SinkStart:
	default:
		log.Debug().Str("module", "audio.sink").Msg("dropping start signal, receiver gone")
	}
}

func (s *Sink) Stop() {
	select {
	case s.signals <- SinkStop:
	default:
		log.Debug().Str("module", "audio.sink").Msg("dropping stop signal, receiver gone")
	}
	s.bridge.Flush()
}

func (s *Sink) Write(p []byte) (int, error) {
	return s.bridge.Write(p)
}
