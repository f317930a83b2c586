package main

import (
	"os"

	_ "github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource/all"
	"github.com/delphix/dlpxdbprofiler/pkg/cli"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	os.Exit(cli.Execute(Version))
}
