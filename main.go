package main

import (
	"toolchain-bench/cmd"
	"toolchain-bench/internal/controller"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.WithField("class", controller.Classify(err)).WithError(err).Fatal("Failed to execute command")
	}
}
