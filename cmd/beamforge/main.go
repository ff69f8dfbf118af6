package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	// Import for side effects: register all providers via init()
	_ "github.com/praetorian-inc/beamforge/internal/providers/reference/bedrockvision"
	_ "github.com/praetorian-inc/beamforge/internal/providers/reference/critique"
	_ "github.com/praetorian-inc/beamforge/internal/providers/reference/openaitext"
	_ "github.com/praetorian-inc/beamforge/internal/providers/reference/replicateimage"
	_ "github.com/praetorian-inc/beamforge/internal/providers/test"
)

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("beamforge"),
		kong.Description("Beamforge - beam-search prompt/image refinement orchestrator"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Exit(func(code int) {
			if code != 0 {
				os.Exit(2)
			}
			os.Exit(0)
		}),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
