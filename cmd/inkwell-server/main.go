// @title Inkwell Server API
// @version 1.0
// @description Editor attachment server: websocket editor relay plus the HTTP attachment sink and status endpoints.
// @host localhost:8080
// @BasePath /api
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"inkwell-server-go/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [Bootstrap] starting inkwell-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "inkwell-server failed: %v\n", err)
		os.Exit(1)
	}
}
