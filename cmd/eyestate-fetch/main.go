// eyestate-fetch - download model and cascade artifacts into the cache
//
// Arguments are http(s) URLs, s3://bucket/key URIs or local paths. Each is
// resolved once; the printed paths can be passed to eyestate -model/-cascade.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-eyestate/internal/config"
	"github.com/teslashibe/go-eyestate/internal/log"
	"github.com/teslashibe/go-eyestate/pkg/artifact"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"golang.org/x/term"
)

func main() {
	os.Exit(run())
}

func run() int {
	cacheDir := flag.String("cache", config.CacheDir(), "Cache directory")
	retries := flag.Uint64("retries", 5, "Retries per artifact")
	parallel := flag.Int("parallel", 4, "Concurrent downloads")
	region := flag.String("region", config.String(config.EnvAWSRegion, "us-east-1"), "S3 region")
	endpoint := flag.String("endpoint", config.String(config.EnvEndpoint, ""), "S3-compatible endpoint, e.g. http://127.0.0.1:9000")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log.Init(*logLevel)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: eyestate-fetch [flags] ref...")
		flag.PrintDefaults()
		return eyestate.ExitConfig
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := artifact.DefaultConfig(*cacheDir)
	cfg.MaxRetries = *retries
	cfg.Parallel = *parallel
	cfg.S3 = artifact.S3Config{
		Region:    *region,
		Endpoint:  *endpoint,
		AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}
	fetcher := artifact.NewFetcher(cfg)

	interactive := term.IsTerminal(int(os.Stderr.Fd()))
	if interactive {
		fmt.Fprintf(os.Stderr, "📦 Fetching %d artifact(s) into %s\n", flag.NArg(), *cacheDir)
	}

	start := time.Now()
	paths, err := fetcher.ResolveAll(ctx, flag.Args()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return eyestate.ExitCode(err)
	}

	for i, p := range paths {
		if interactive {
			fmt.Fprintf(os.Stderr, "✅ %s\n", flag.Arg(i))
		}
		fmt.Println(p)
	}
	if interactive {
		fmt.Fprintf(os.Stderr, "⏱️  %s\n", time.Since(start).Round(time.Millisecond))
	}
	return eyestate.ExitOK
}
