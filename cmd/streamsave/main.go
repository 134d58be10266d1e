// Command streamsave detects, resolves and downloads videos from the command line. It
// runs the coordinator, helper and page contexts in-process and talks to the resolution
// service over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

func main() {
	if err := newRootCmd(afero.NewOsFs()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
