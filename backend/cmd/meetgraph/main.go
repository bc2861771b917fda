// Command meetgraph runs archive maintenance from the shell: batch ingest,
// cascade deletes, consistency repair, bundle export and the Neo4j export.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
