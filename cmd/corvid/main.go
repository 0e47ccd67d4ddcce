// SPDX-License-Identifier: MPL-2.0

// Command corvid boots and inspects corvid runtime contexts.
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(int(execute(context.Background())))
}
