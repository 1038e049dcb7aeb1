// Command sqliteworkerd is the Go analogue of spec.md's excluded
// "host-side TypeScript/binding glue": one process per tab, started by
// whatever embeds this module, that owns a coordinator, a host handle, and
// — if elected leader — re-execs itself as a DB-worker child (spec.md
// §4.3). Cobra-based, following lxd/config/generate/main.go's shape.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
