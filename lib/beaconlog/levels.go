package beaconlog

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
)

// Subsystems are the loggers of this module.
var Subsystems = []string{"beacon", "drand", "retry", "config", "drand-verify"}

// SetupLogLevels sets the default levels unless GOLOG_LOG_LEVEL already picked them.
func SetupLogLevels() {
	if _, set := os.LookupEnv("GOLOG_LOG_LEVEL"); !set {
		_ = logging.SetLogLevel("*", "INFO")
		_ = logging.SetLogLevel("retry", "WARN")
	}
}

// SetLevel applies level to every subsystem of this module.
func SetLevel(level string) error {
	for _, s := range Subsystems {
		if err := logging.SetLogLevel(s, level); err != nil {
			return err
		}
	}
	return nil
}
