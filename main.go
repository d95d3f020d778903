package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/olivoil/onewordstory/internal/app"
	"github.com/olivoil/onewordstory/internal/backend"
)

func main() {
	configPath := backend.DefaultConfigPath(app.AppName)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--version" || arg == "-v" || arg == "version":
			fmt.Printf("%s %s\n", app.AppName, app.AppVersion)
			return
		case arg == "--help" || arg == "-h" || arg == "help":
			usage()
			return
		case arg == "--config" || arg == "-c":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "error: --config needs a path")
				os.Exit(2)
			}
			i++
			configPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		default:
			fmt.Fprintf(os.Stderr, "error: unknown argument %q\n", arg)
			os.Exit(2)
		}
	}

	if err := app.Run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Printf("%s %s\n\n", app.AppName, app.AppVersion)
	fmt.Println("Collaborate on an ever-growing tale, one word at a time, on the blockchain.")
	fmt.Printf("\nUsage: %s [--config <path>]\n", app.AppName)
	fmt.Printf("\nConfig: %s\n", backend.DefaultConfigPath(app.AppName))
	fmt.Println(`
Environment:
  STORY_PROVIDER_URL      wallet provider (http://, ws:// or IPC socket path)
  STORY_CHAIN_ID          expected chain ID (0 accepts any)
  STORY_CONTRACT_ADDRESS  OneWordStory contract address
  STORY_CONTRACT_ABI      contract artifact or ABI JSON (default: embedded)
  STORY_POLL_INTERVAL     receipt and log polling interval (e.g. 1s)
  STORY_LOG_FILE          log file path
  STORY_LOG_LEVEL         debug, info, warn or error
  ONEWORDSTORY_CONFIG     config file path`)
}
