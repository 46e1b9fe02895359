package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "cluster":
		return runCluster(args[1:])
	case "gather":
		return runGather(args[1:])
	case "prune":
		return runPrune(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "news-gatherer CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  news-gatherer <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify the seen ledger and database are reachable")
	fmt.Fprintln(os.Stderr, "  validate  Validate record files (JSON array or JSON lines)")
	fmt.Fprintln(os.Stderr, "  cluster   Cluster records from files without fetching")
	fmt.Fprintln(os.Stderr, "  gather    Fetch from GDELT or RSS, cluster and emit new stories")
	fmt.Fprintln(os.Stderr, "  prune     Drop seen ledger entries older than the retention")
	fmt.Fprintln(os.Stderr, "  serve     Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"news-gatherer <command> -h\" for command-specific flags.")
}
