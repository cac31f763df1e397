// reel turns a topic into a narrated video from the command line.
//
// Usage: reel -topic "deep sea creatures" [-out final_video.mp4] [-timeout 10m]
// Without -topic the topic is read from stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bobarin/topicreel/internal/app"
	"github.com/bobarin/topicreel/internal/config"
	"github.com/bobarin/topicreel/internal/media"
	"github.com/bobarin/topicreel/internal/workspace"
)

func main() {
	topic := flag.String("topic", "", "topic to make a video about (prompted when empty)")
	out := flag.String("out", "", "output file (default: OUTPUT_PATH)")
	timeout := flag.Duration("timeout", 0, "overall timeout (e.g. 10m); 0 -> none")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *out != "" {
		cfg.OutputPath = *out
	}

	if *topic == "" {
		*topic = promptTopic()
	}
	*topic = strings.TrimSpace(*topic)
	if *topic == "" {
		fmt.Fprintln(os.Stderr, "A topic is required.")
		os.Exit(2)
	}

	// Clear sessions left behind by earlier interrupted runs
	if n, err := workspace.NewReaper(cfg.CacheDir, cfg.SessionTimeout).Sweep(); err != nil {
		log.Printf("Warning: session sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("Removed %d stale session(s)", n)
	}

	p, err := app.NewPipeline(cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := p.Run(ctx, *topic, consoleObserver{})
	if err != nil {
		stop()
		log.Fatalf("Run failed (%s): %v", media.ErrorCode(err), err)
	}

	fmt.Printf("\nVideo:     %s (%.1fs, %d segment(s), %d loop(s))\n", res.VideoPath, res.Duration.Seconds(), res.Segments, res.Loops)
	if res.ThumbnailPath != "" {
		fmt.Printf("Thumbnail: %s\n", res.ThumbnailPath)
	}
	fmt.Printf("Done in %s\n", time.Since(start).Round(time.Second))
}

func promptTopic() string {
	fmt.Print("Enter a topic: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return line
}
