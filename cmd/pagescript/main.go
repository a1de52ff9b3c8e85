package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/you/extraneous/internal/config"
	"github.com/you/extraneous/internal/pagescript"
	"github.com/you/extraneous/internal/router"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		location     string
		input        string
		output       string
		backendAddr  string
		configPath   string
		markWatched  bool
		playlistWait time.Duration
		timeout      time.Duration
	)

	flag.StringVar(&location, "url", "", "Page location (required; used for link resolution and page classification)")
	flag.StringVar(&input, "input", "", "Rendered HTML file to read ('-' for stdin; empty fetches -url)")
	flag.StringVar(&output, "output", "-", "Where to write the transformed page ('-' for stdout)")
	flag.StringVar(&backendAddr, "backend", "127.0.0.1:8427", "Background daemon address")
	flag.StringVar(&configPath, "config", "", "JSON extension-config file (defaults apply when empty)")
	flag.BoolVar(&markWatched, "mark-watched", false, "Record the current watch-page video as watched")
	flag.DurationVar(&playlistWait, "playlist-wait", 100*time.Millisecond, "How long to wait for the lazy mini playlist (0 skips it)")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall run deadline")
	flag.Parse()

	if strings.TrimSpace(location) == "" {
		log.Fatal("missing required -url")
	}
	base, err := url.Parse(location)
	if err != nil {
		log.Fatalf("parse -url: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	page, err := readPage(ctx, input, base)
	if err != nil {
		log.Fatalf("read page: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		log.Fatalf("parse page: %v", err)
	}

	cfg := config.Defaults()
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			log.Fatalf("read config: %v", err)
		}
		cfg, err = config.Merge(raw)
		if err != nil {
			log.Fatalf("merge config: %v", err)
		}
	}

	client, err := router.Dial(ctx, backendAddr)
	if err != nil {
		log.Fatalf("connect background: %v", err)
	}
	defer client.Close()

	err = pagescript.Transform(ctx, doc, pagescript.Options{
		Location:     base,
		Config:       cfg,
		Backend:      client,
		MarkWatched:  markWatched,
		PlaylistWait: playlistWait,
	})
	switch {
	case errors.Is(err, pagescript.ErrNotInvidious):
		log.Printf("not an Invidious page, leaving untouched")
	case err != nil:
		// A broken page layout degrades to "do nothing": emit the page
		// unmodified rather than failing the run.
		log.Printf("transform skipped: %v", err)
	}

	html, err := doc.Html()
	if err != nil {
		log.Fatalf("serialize page: %v", err)
	}
	if err := writeOutput(output, html); err != nil {
		log.Fatalf("write output: %v", err)
	}
}

func readPage(ctx context.Context, input string, base *url.URL) (string, error) {
	switch input {
	case "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
		if err != nil {
			return "", err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		return string(body), err
	case "-":
		body, err := io.ReadAll(os.Stdin)
		return string(body), err
	default:
		body, err := os.ReadFile(input)
		return string(body), err
	}
}

func writeOutput(output, html string) error {
	if output == "-" {
		_, err := io.WriteString(os.Stdout, html)
		return err
	}
	return os.WriteFile(output, []byte(html), 0o644)
}
