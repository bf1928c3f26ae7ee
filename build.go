package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/craiggwilson/goke/task"
	"github.com/finodoc/codal-tools/buildscript"
)

var taskRegistry = task.NewRegistry(task.WithAutoNamespaces(true))

func init() {
	taskRegistry.Declare("check:goversion").Description("checks that the installed Go is new enough").Do(buildscript.CheckMinimumGoVersion)
	taskRegistry.Declare("build").Description("build the tools").OptionalArgs("pkgs").DependsOn("check:goversion").Do(buildscript.BuildTools)
	taskRegistry.Declare("test:unit").Description("runs unit tests").OptionalArgs("pkgs").Do(buildscript.TestUnit)
	taskRegistry.Declare("test:integration").Description("runs integration tests").OptionalArgs("pkgs", "auth").Do(buildscript.TestIntegration)
	taskRegistry.Declare("sa:modtidy").Description("runs go mod tidy and checks that nothing changed").Do(buildscript.SAModTidy)
}

func main() {
	err := task.Run(taskRegistry, os.Args[1:])
	if err == flag.ErrHelp {
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
