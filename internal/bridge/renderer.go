package bridge

import (
	"go.uber.org/zap"

	"positionScope/internal/liquidity"
)

// LogRenderer writes control state to a zap logger. The CLI uses it in
// place of a graphical front end.
type LogRenderer struct {
	logger *zap.Logger
}

func NewLogRenderer(logger *zap.Logger) *LogRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRenderer{logger: logger}
}

func (r *LogRenderer) RenderOptions(control liquidity.Control, options []Option, selected string) {
	texts := make([]string, 0, len(options))
	for _, opt := range options {
		texts = append(texts, opt.Text)
	}
	r.logger.Info("positions",
		zap.String("control", string(control)),
		zap.Strings("options", texts),
		zap.String("selected", selected),
	)
}

func (r *LogRenderer) RenderControl(control liquidity.Control, enabled bool, label string) {
	r.logger.Info("control",
		zap.String("control", string(control)),
		zap.Bool("enabled", enabled),
		zap.String("label", label),
	)
}
