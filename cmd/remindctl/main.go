package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apptremind/remindctl/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional, or $REMINDCTL_CONFIG)")
	flag.Usage = func() {
		app.Usage(flag.CommandLine.Output())
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := app.Open(ctx, app.Options{ConfigPath: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "remindctl: %v\n", err)
		return 1
	}
	defer rt.Close()

	if err := rt.Execute(ctx, flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "remindctl: %v\n", err)
		if errors.Is(err, app.ErrUsage) {
			fmt.Fprintln(os.Stderr)
			app.Usage(os.Stderr)
			return 2
		}
		return 1
	}
	return 0
}
