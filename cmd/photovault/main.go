package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/vkuzmenko/photovault/internal/app"
	"github.com/vkuzmenko/photovault/internal/config"
)

const usage = `usage: photovault <command> [flags]

commands:
  register            store a provider credential in the vault
  login               authenticate against the provider
  code <token> <code> submit a second-factor code for a pending session
  sync                detect discrepancies and dispatch them to the catalog
  audit               reconcile the blob store against catalog versions
`

func main() {

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := app.WithSignalContext(context.Background())
	defer cancel()

	cfg := config.LoadConfig()
	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	switch os.Args[1] {
	case "register":
		err = a.Register(ctx)
	case "login":
		err = a.Login(ctx)
	case "code":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "usage: photovault code <token> <code>")
			os.Exit(2)
		}
		err = a.Code(ctx, os.Args[2], os.Args[3])
	case "sync":
		err = a.Sync(ctx)
	case "audit":
		var clean bool
		clean, err = a.Audit(ctx)
		if err == nil && !clean {
			os.Exit(1)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%v", err)
	}
}
