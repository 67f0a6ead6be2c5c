// Command sitectl runs operator tasks against the site database without
// starting the HTTP server.
//
//	sitectl hash-password <password> [--username admin]
//	sitectl create-admin --username root --password ... [--display-name Sakif]
//	sitectl prune
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
