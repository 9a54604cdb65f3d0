package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/midoBB/qs-daemon/internal/config"
	"github.com/midoBB/qs-daemon/internal/protocol"
)

const clientTimeout = 5 * time.Second

// handleSearch sends one Search request to the running daemon and prints
// the results.
func handleSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Path to config.toml")
	limit := fs.Int("limit", 0, "Max results (0 uses the daemon's default)")
	asJSON := fs.Bool("json", false, "Print the raw response frame")

	fs.Usage = func() {
		fmt.Println("Usage: qs-daemon search [--limit <n>] [--json] <query>")
		fmt.Println()
		fmt.Println("Fuzzy-search the daemon's file index. An empty query lists")
		fmt.Println("indexed files in scan order.")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	req := protocol.SearchRequest{Query: strings.Join(fs.Args(), " ")}
	if *limit > 0 {
		req.Limit = limit
	}

	resp := roundTrip(*configPath, req, *asJSON)
	if resp == nil {
		return
	}

	results, ok := resp.(protocol.SearchResults)
	if !ok {
		fatalResponse(resp)
	}
	for _, r := range results.Results {
		fmt.Println(r.DisplayPath)
	}
	fmt.Fprintf(os.Stderr, "%d of %d files\n", results.ResultsCount, results.TotalFiles)
}

// handleRefresh asks the daemon for an immediate index rebuild.
func handleRefresh(args []string) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Path to config.toml")
	asJSON := fs.Bool("json", false, "Print the raw response frame")

	fs.Usage = func() {
		fmt.Println("Usage: qs-daemon refresh [--json]")
		fmt.Println()
		fmt.Println("Rebuild the daemon's file index now.")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	resp := roundTrip(*configPath, protocol.RefreshRequest{}, *asJSON)
	if resp == nil {
		return
	}

	done, ok := resp.(protocol.RefreshComplete)
	if !ok {
		fatalResponse(resp)
	}
	fmt.Printf("Index rebuilt: %d files\n", done.FilesCount)
}

// handleStatus prints the daemon's index size and last update time.
func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Path to config.toml")
	asJSON := fs.Bool("json", false, "Print the raw response frame")

	fs.Usage = func() {
		fmt.Println("Usage: qs-daemon status [--json]")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	resp := roundTrip(*configPath, protocol.StatusRequest{}, *asJSON)
	if resp == nil {
		return
	}

	status, ok := resp.(protocol.StatusResponse)
	if !ok {
		fatalResponse(resp)
	}
	fmt.Printf("Files indexed: %d\n", status.FilesCount)
	if status.LastUpdated > 0 {
		fmt.Printf("Last updated:  %s\n", time.Unix(status.LastUpdated, 0).Format(time.RFC3339))
	} else {
		fmt.Println("Last updated:  never")
	}
}

// roundTrip sends one request over the request socket and reads the in-band
// reply. With --json the raw frame is printed and nil returned.
func roundTrip(configPath string, req protocol.Request, asJSON bool) protocol.Response {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	conn, err := net.DialTimeout("unix", cfg.Daemon.RequestSocket, clientTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach daemon at %s: %v\n", cfg.Daemon.RequestSocket, err)
		fmt.Fprintln(os.Stderr, "Is it running? Start it with: qs-daemon serve")
		os.Exit(1)
	}
	defer conn.Close()

	frame, err := protocol.EncodeRequest(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if _, err := conn.Write(append(frame, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// When a launcher holds the response socket the reply is diverted
	// there, so bound the wait instead of hanging.
	_ = conn.SetReadDeadline(time.Now().Add(clientTimeout))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: no reply on request socket: %v\n", err)
		fmt.Fprintf(os.Stderr, "A response-socket consumer may have received it instead (%s)\n", cfg.Daemon.ResponseSocket)
		os.Exit(1)
	}

	if asJSON {
		fmt.Print(string(line))
		return nil
	}

	resp, err := protocol.DecodeResponse(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: bad response frame: %v\n", err)
		os.Exit(1)
	}
	return resp
}

// fatalResponse reports an unexpected response type and exits. Error frames
// carry the daemon's message through verbatim.
func fatalResponse(resp protocol.Response) {
	if e, ok := resp.(protocol.ErrorResponse); ok {
		fmt.Fprintf(os.Stderr, "Error: %s\n", e.Message)
	} else {
		fmt.Fprintf(os.Stderr, "Error: unexpected response type %T\n", resp)
	}
	os.Exit(1)
}
