package globals

import "github.com/hashicorp/go-hclog"

var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "lightspeed-roster",
	Level: hclog.LevelFromString("DEBUG"),
})

// SetLogLevel changes the level of the process logger, unknown levels are ignored.
func SetLogLevel(level string) {
	if l := hclog.LevelFromString(level); l != hclog.NoLevel {
		AppLogger.SetLevel(l)
	}
}
