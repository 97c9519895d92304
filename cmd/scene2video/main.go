// Command scene2video renders time-parameterized scenes into VP9/WebM video.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "[-] Ошибка: %v\n", err)
		}
		os.Exit(1)
	}
}
