// Command crudkit serves the notes resource over HTTP and manages its schema.
package main

import "github.com/nimburion/crudkit/pkg/cli"

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{
		Name:        "crudkit",
		Description: "Generic CRUD resource service",
		EnvPrefix:   cli.DefaultEnvPrefix,
	}))
}
