// Command btpmatch はBTPマッチングのBFFサーバーを起動する。
//
//	btpmatch [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/btpmatch/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "btpmatch: %v\n", err)
		os.Exit(1)
	}
}
