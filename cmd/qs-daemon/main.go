package main

import (
	"fmt"
	"os"
)

const Version = "0.3.0"

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("qs-daemon v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "serve":
			handleServe(args[1:])
			return
		case "search":
			handleSearch(args[1:])
			return
		case "refresh":
			handleRefresh(args[1:])
			return
		case "status":
			handleStatus(args[1:])
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
			printHelp()
			os.Exit(1)
		}
	}

	// No subcommand runs the daemon, so a process supervisor can just
	// exec the binary.
	handleServe(nil)
}

func printHelp() {
	fmt.Println("qs-daemon - background file index with fuzzy search over unix sockets")
	fmt.Println()
	fmt.Println("Usage: qs-daemon [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve              Run the indexing daemon (default)")
	fmt.Println("  search <query>     Query the running daemon")
	fmt.Println("  refresh            Ask the daemon to rebuild its index now")
	fmt.Println("  status             Show index size and last update time")
	fmt.Println("  version            Print version")
	fmt.Println("  help               Show this help")
	fmt.Println()
	fmt.Println("Run 'qs-daemon <command> --help' for command flags.")
}
