// Command stereo runs the stereotweet overlay from a terminal and offers
// maintenance and debugging tasks.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		newPrinter(os.Stdout, os.Stderr).Error("%v", err)
		os.Exit(1)
	}
}
