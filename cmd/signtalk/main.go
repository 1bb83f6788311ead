// Command signtalk replays recorded hand landmark streams through the sign
// recognition engine and trains its template classifiers.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
