package main

import (
	"os"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

func _main() error {
	return newRootCommand().Execute()
}

func main() {
	prefixed := &prefixed.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
		ForceColors:     isatty.IsTerminal(os.Stderr.Fd()),
	}
	log.SetFormatter(prefixed)
	// stdout carries rendered output
	log.SetOutput(os.Stderr)
	err := _main()
	if err != nil {
		log.Fatal(err)
	}
}
