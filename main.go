// Command steamvoice extracts and decodes Steam voice-chat payloads from CS2
// demo files into per-player WAV files.
package main

import "github.com/demostf/steamvoice/cmd"

func main() {
	cmd.Execute()
}
