// Command sociallogin runs Facebook and Google logins from a terminal, either
// in-process with a loopback redirect listener or against a socialsvc server.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
