// Command coordinator runs the two-party WebRTC signaling coordinator.
package main

import (
	"aq-coordinator/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		panic(err)
	}

	if err := application.Run(); err != nil {
		panic(err)
	}
}
