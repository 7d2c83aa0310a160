// Command ebz is the administration backend for the Ebenezer praise team:
// roster, finances, attendance, discipline, music library, events and
// projects, kept in local memory and mirrored to a remote row store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
