// Command readerctl inspects and drives a readerkit installation from the
// terminal: it shows the session status, replays the sync queue, applies the
// remote schema, imports text documents and runs similarity searches.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
