package main

import (
	"context"
	"os"

	"github.com/cocosip/go-jpeg-codec/cmd/jpegtool/cmd"
)

// gitsha is stamped by the build
var gitsha = "dev"

func main() {
	ctx := context.Background()
	if err := cmd.NewRoot(ctx, gitsha).Execute(); err != nil {
		os.Exit(1)
	}
}
