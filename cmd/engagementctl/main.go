// Engagementctl is the operator tool for the engagement pipeline: apply
// migrations, force an ingestion run, or look at the feed without the cache.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
