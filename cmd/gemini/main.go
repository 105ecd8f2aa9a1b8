// Command gemini sends a prompt to the Gemini API and prints every generated
// answer on its own line.
//
// Usage:
//
//	gemini [-config path] [-model name] [-proxy host] [-key key] [prompt...]
//
// Without prompt arguments the prompt is read from standard input. The API
// key falls back to the GEMINI_API_KEY environment variable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"geminiclient/internal/config"
	"geminiclient/internal/gemini"
	"geminiclient/internal/logging"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, nil); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		if errors.Is(err, gemini.ErrMissingAPIKey) {
			logrus.Fatal(err)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, httpClient *http.Client) error {
	flags := flag.NewFlagSet("gemini", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		configPath = flags.String("config", "gemini.yaml", "path to the optional configuration file")
		model      = flags.String("model", "", "model to use, overrides the configuration")
		proxy      = flags.String("proxy", "", "host to send requests to instead of the public API host")
		key        = flags.String("key", "", "API key, overrides the configuration and "+gemini.APIKeyEnv)
		verbose    = flags.Bool("v", false, "log requests to stderr")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		return err
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	log, err := logging.New(stderr, cfg.Log.Level, "text")
	if err != nil {
		return err
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Gemini.Timeout}
	}
	client, err := gemini.New(gemini.Options{
		APIKey:     firstNonEmpty(*key, cfg.Gemini.APIKey),
		Model:      firstNonEmpty(*model, cfg.Gemini.Model),
		Proxy:      firstNonEmpty(*proxy, cfg.Gemini.Proxy),
		HTTPClient: httpClient,
		Log:        log,
	})
	if err != nil {
		return err
	}

	prompt := strings.Join(flags.Args(), " ")
	if prompt == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(b))
	}
	if prompt == "" {
		return errors.New("empty prompt")
	}

	answers, err := client.Ask(ctx, prompt)
	if err != nil {
		return err
	}
	log.WithField("answers", len(answers)).Debug("Done")
	for _, a := range answers {
		fmt.Fprintln(stdout, a)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
