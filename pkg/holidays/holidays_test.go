package holidays

import (
	"log/slog"

	"github.com/pvpcnext/pvpcnext/pkg/log"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}
