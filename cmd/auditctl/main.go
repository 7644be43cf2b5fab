// Command auditctl inspects and verifies the tamper-evident audit
// trail produced by the API server.
//
// Usage:
//
//	auditctl -db /var/lib/openbooks/audit.db verify
//	auditctl -db /var/lib/openbooks/audit.db tail -n 20
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/openbooks-dev/openbooks/pkg/audit"
)

func main() {
	dbPath := flag.String("db", "audit.db", "path to the audit trail database")
	n := flag.Int("n", 10, "number of entries to show with tail")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "verify"
	}

	sink, err := audit.OpenSQLiteSink(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "auditctl: %v\n", err)
		os.Exit(1)
	}
	defer sink.Close()

	entries, err := sink.Entries()
	if err != nil {
		fmt.Fprintf(os.Stderr, "auditctl: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "verify":
		if !audit.VerifyChain(entries) {
			fmt.Fprintf(os.Stderr, "auditctl: chain verification FAILED (%d entries)\n", len(entries))
			os.Exit(1)
		}
		fmt.Printf("ok: %d entries, chain intact\n", len(entries))
		if len(entries) > 0 {
			fmt.Printf("tip: %s\n", entries[len(entries)-1].Hash)
		}

	case "tail":
		start := len(entries) - *n
		if start < 0 {
			start = 0
		}
		for _, e := range entries[start:] {
			fmt.Printf("%s  %s  %s\n", e.Timestamp, e.Hash[:12], e.Payload)
		}

	default:
		fmt.Fprintf(os.Stderr, "auditctl: unknown command %q (want verify or tail)\n", cmd)
		os.Exit(1)
	}
}
