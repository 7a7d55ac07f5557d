package buildpipeline

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// MultiSink fans events out to several sinks.
type MultiSink []ProgressSink

func (s MultiSink) OnEvent(evt Event) {
	for _, sink := range s {
		if sink != nil {
			sink.OnEvent(evt)
		}
	}
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) OnEvent(Event) {}
