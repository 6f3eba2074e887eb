package console

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/otc-market/otc-market/internal/domain/chat"
)

// Gateway writes outbound messages to the log. It stands in for a real
// chat transport when none is attached, so the core stays runnable and
// observable on its own.
type Gateway struct {
	logger zerolog.Logger
}

func NewGateway(logger zerolog.Logger) *Gateway {
	return &Gateway{logger: logger.With().Str("service", "gateway").Logger()}
}

func (g *Gateway) Send(_ context.Context, userID int64, text string, keyboard chat.Keyboard) error {
	ev := g.logger.Info().Int64("user", userID).Str("text", text)
	if len(keyboard) > 0 {
		buttons := make([]string, 0)
		for _, row := range keyboard {
			for _, b := range row {
				buttons = append(buttons, b.Data)
			}
		}
		ev = ev.Strs("buttons", buttons)
	}
	ev.Msg("outbound message")
	return nil
}
