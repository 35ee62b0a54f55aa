package telemetry

import "os"

func currentPID() int {
	return os.Getpid()
}
