package main

import (
	"fmt"

	"github.com/temirov/treedump/internal/cli"
	"github.com/temirov/treedump/internal/utils"
)

// main is the entry point for the treedump command.
func main() {
	loggerInstance, loggerLevel, loggerInitializationError := utils.NewApplicationLogger()
	if loggerInitializationError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	defer func() { _ = loggerInstance.Sync() }()
	if applicationExecutionError := cli.Execute(loggerInstance, loggerLevel); applicationExecutionError != nil {
		loggerInstance.Fatal(utils.ApplicationExecutionFailedMessage + ": " + applicationExecutionError.Error())
	}
}
