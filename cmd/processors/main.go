// Command processors runs the demo extension: it dispatches request
// documents and CloudEvents, inspects the route table and runs the
// scheduler with live reload of the application file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := &CLI{}
	parser, err := newParser(ctx, cli, os.Stdout, os.Stdin, os.Stderr)
	if err != nil {
		panic(err)
	}

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	kctx.FatalIfErrorf(kctx.Run())
}
