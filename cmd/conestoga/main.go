package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coverclock/com-diag-diminuto-sub002/pkg/log"
)

func main() {
	os.Exit(run(os.Args))
}

func run(argv []string) int {
	program := filepath.Base(argv[0])

	logger := log.Default()
	logger.SetMaskFromEnvironment()

	cfg, err := ParseArgs(program, argv[1:])
	if err != nil {
		var help HelpRequested
		if errors.As(err, &help) {
			return exitHelp
		}
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", program, parseErr)
			return exitArgumentError
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", program, err)
		return exitArgumentError
	}

	logger.ImportMaskFromFile(cfg.MaskFile)

	logger.Log(log.Information, "%s: role %s", program, cfg.Role)
	logger.Log(log.Information, "%s: device %s %d-%d-%d", program, cfg.Device, cfg.BaudRate, cfg.DataBits, cfg.StopBits)

	proxy, code, err := NewProxy(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", program, err)
		return code
	}
	defer proxy.Close()

	if proxy.metrics != nil {
		server := newMetricsServer(cfg.MetricsAddr, proxy.metrics)
		go func() {
			if err := server.Serve(); err != nil {
				logger.Perror("metrics", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		}()
	}

	return proxy.Run()
}
