// Command pktextract copies the tcp payload of every record in a raw
// ipv4/tcp record file into an output file.
package main

import (
	"os"
)

func main() {
	os.Exit(Execute())
}
