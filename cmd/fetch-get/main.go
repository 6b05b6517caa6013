// Command fetch-get streams a local file or an HTTP URL to stdout through
// the fetch engine, one bounded chunk at a time.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	fetch "github.com/Comanx/go-fetch"
	"github.com/Comanx/go-fetch/internal/logging"
	"github.com/Comanx/go-fetch/provider/fsprov"
	"github.com/Comanx/go-fetch/provider/httpprov"
)

func main() {
	var (
		chunkStr = flag.String("chunk", "64K", "Chunk buffer size (e.g. 4K, 64K, 1M)")
		output   = flag.String("o", "-", "Output file, - for stdout")
		verbose  = flag.Bool("v", false, "Verbose output")
		stats    = flag.Bool("stats", false, "Print fetch statistics on completion")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <path-or-url>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	target := flag.Arg(0)

	chunkSize, err := parseSize(*chunkStr)
	if err != nil {
		log.Fatalf("Invalid chunk size '%s': %v", *chunkStr, err)
	}

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(os.Stderr, level)

	var provider fetch.Provider
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		provider = httpprov.New(nil)
	} else {
		provider = fsprov.New()
	}

	out := os.Stdout
	if *output != "-" {
		out, err = os.Create(*output)
		if err != nil {
			log.Fatalf("Cannot create %s: %v", *output, err)
		}
		defer out.Close()
	}

	params := fetch.DefaultParams(provider)
	params.Logger = logger
	engine, err := fetch.Setup(params)
	if err != nil {
		logger.Errorf("failed to set up engine: %v", err)
		os.Exit(1)
	}
	defer engine.Shutdown()

	var (
		done     bool
		failed   bool
		total    int64
		writeErr error
	)
	buffer := make([]byte, chunkSize)

	_, err = engine.Send(fetch.Request{
		Path:   target,
		Buffer: buffer,
		Callback: func(r *fetch.Response) {
			if r.Fetched {
				total += r.FetchedSize
				if _, werr := out.Write(r.Buffer[:r.FetchedSize]); werr != nil && writeErr == nil {
					writeErr = werr
				}
				logger.Debugf("chunk at %d, %d bytes", r.ContentOffset, r.FetchedSize)
			}
			if r.Failed {
				failed = true
			}
			if r.Finished {
				done = true
			}
		},
	})
	if err != nil {
		logger.Errorf("send failed: %v", err)
		os.Exit(1)
	}

	start := time.Now()
	for !done {
		if err := engine.Dowork(); err != nil {
			logger.Errorf("dowork failed: %v", err)
			os.Exit(1)
		}
		if !done {
			time.Sleep(time.Millisecond)
		}
	}

	if failed {
		logger.Errorf("fetch failed: %s", target)
		os.Exit(1)
	}
	if writeErr != nil {
		logger.Errorf("write failed: %v", writeErr)
		os.Exit(1)
	}

	logger.Printf("fetched %s: %d bytes in %s",
		target, total, time.Since(start).Round(time.Millisecond))

	if *stats {
		snap := engine.MetricsSnapshot()
		fmt.Fprintf(os.Stderr, "opens: %d (errors %d)\n", snap.OpenOps, snap.OpenErrors)
		fmt.Fprintf(os.Stderr, "reads: %d (errors %d)\n", snap.ReadOps, snap.ReadErrors)
		fmt.Fprintf(os.Stderr, "bytes: %s\n", formatSize(int64(snap.FetchedBytes)))
		fmt.Fprintf(os.Stderr, "p50/p99 latency: %s / %s\n",
			time.Duration(snap.LatencyP50Ns), time.Duration(snap.LatencyP99Ns))
	}
}

// parseSize parses a size string like "4K", "64K", "1M"
func parseSize(s string) (int, error) {
	s = strings.ToUpper(s)

	var multiplier = 1
	var numStr string

	if strings.HasSuffix(s, "K") {
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "K")
	} else if strings.HasSuffix(s, "M") {
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "M")
	} else {
		numStr = s
	}

	num, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, err
	}
	if num <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	return num * multiplier, nil
}

// formatSize formats a byte count as a human-readable string
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T"}
	return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
}
