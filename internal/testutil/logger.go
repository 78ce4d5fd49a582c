package testutil

import (
	"io"

	"github.com/LorenzoCecattoPaim/Math/internal/logger"
)

func MakeNoopLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, 0)
}
