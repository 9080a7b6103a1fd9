package bench

// Stage identifies a measured loop.
type Stage uint8

const (
	StageWarmup Stage = iota + 1
	StageBaseline
	StagePackaging
)

// Stages lists the stages in execution order.
var Stages = []Stage{StageWarmup, StageBaseline, StagePackaging}

func (s Stage) String() string {
	switch s {
	case StageWarmup:
		return "warmup"
	case StageBaseline:
		return "baseline"
	case StagePackaging:
		return "packaging"
	default:
		return "unknown"
	}
}

// Status is the state of a stage.
type Status uint8

const (
	StatusQueued Status = iota
	StatusWorking
	StatusDone
	StatusError
)

// Event reports progress of one stage.
type Event struct {
	Stage  Stage
	Status Status
	Done   int
	Total  int
}

// Sink receives progress events. Emit must not block for long.
type Sink interface {
	Emit(Event)
}

// ChannelSink forwards events to a channel, dropping them when it is full.
type ChannelSink chan<- Event

// Emit implements Sink.
func (c ChannelSink) Emit(ev Event) {
	// Terminal events are always delivered.
	if ev.Status == StatusDone || ev.Status == StatusError {
		c <- ev
		return
	}
	select {
	case c <- ev:
	default:
	}
}

type nopSink struct{}

func (nopSink) Emit(Event) {}
