// Command coder resolves free-text attributes of source datasets against the
// reference catalog.
//
//	coder run -c coder.yaml --source 100120 --domains topics,conditions
//	coder validate -c coder.yaml
package main

import (
	"fmt"
	"os"

	// register all backends with the storage factory.
	_ "coder/internal/storage/all"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
