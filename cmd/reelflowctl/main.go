// Command reelflowctl is the pipeline's CLI surface: it allocates jobs,
// runs them to completion, and reports on their state. It never performs
// ASR, translation, or any other model inference itself — every
// out-of-scope collaborator stays confined to the cmd/stages/* modules
// the Environment Manager launches on the CLI's behalf.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
