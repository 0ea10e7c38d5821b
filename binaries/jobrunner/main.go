package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/stanplayground/jobrunner/cli"
)

func main() {
	if err := cli.NewCLI().Exec(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
