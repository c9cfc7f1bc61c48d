package sim

import (
	"log/slog"

	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// LogObserver writes trajectory events to a structured logger. Steps are
// logged at debug level only when Steps is set.
type LogObserver struct {
	Logger *slog.Logger
	Steps  bool
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger}
}

func vecAttr(key string, v r3.Vec) slog.Attr {
	return slog.Group(key, slog.Float64("x", v.X), slog.Float64("y", v.Y), slog.Float64("z", v.Z))
}

func (o *LogObserver) OnEvent(e dynamo.Event) {
	switch e.Kind {
	case dynamo.EventStep:
		if o.Steps {
			o.Logger.Debug("step",
				slog.Int("step", e.State.Step),
				slog.Float64("t", e.State.Time),
				slog.Float64("dt", e.Dt),
				vecAttr("pos", e.State.Position))
		}
	case dynamo.EventCollision:
		o.Logger.Debug("collision",
			slog.Int("step", e.State.Step),
			slog.Float64("t", e.State.Time),
			slog.Float64("speed_before", r3.Norm(e.Before)),
			slog.Float64("speed_after", r3.Norm(e.State.Velocity)),
			slog.Float64("density", e.Density),
			slog.Float64("temperature", e.Temperature))
	case dynamo.EventExit, dynamo.EventTimeout:
		o.Logger.Info(e.Kind.String(),
			slog.Int("step", e.State.Step),
			slog.Float64("t", e.State.Time),
			vecAttr("pos", e.State.Position))
	}
}
