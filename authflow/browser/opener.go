package browser

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Opener opens URLs with the operating system's default handler.
type Opener struct {
	goos     string
	fallback io.Writer
	start    func(name string, args ...string) error
}

type Option func(*Opener)

// WithFallback prints the URL to w when no browser can be launched, so a
// headless user can open it by hand. Open then succeeds.
func WithFallback(w io.Writer) Option {
	return func(o *Opener) {
		o.fallback = w
	}
}

// WithGOOS overrides the detected operating system (primarily for testing)
func WithGOOS(goos string) Option {
	return func(o *Opener) {
		o.goos = goos
	}
}

// WithStarter replaces the process launcher (primarily for testing)
func WithStarter(start func(name string, args ...string) error) Option {
	return func(o *Opener) {
		if start != nil {
			o.start = start
		}
	}
}

func New(options ...Option) *Opener {
	o := &Opener{
		goos:  runtime.GOOS,
		start: startDetached,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

func (o *Opener) Open(ctx context.Context, rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("[Opener.Open] url is empty")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "[Opener.Open]")
	}

	name, args := Command(o.goos, rawURL)
	err := o.start(name, args...)
	if err == nil {
		return nil
	}
	if o.fallback == nil {
		return errors.Wrapf(err, "[Opener.Open] launch %s", name)
	}

	log.Warn().Err(err).Str("launcher", name).Msg("Could not open a browser")
	if _, werr := fmt.Fprintf(o.fallback, "Open this URL in your browser to sign in:\n\n  %s\n\n", rawURL); werr != nil {
		return errors.Wrap(werr, "[Opener.Open] print url")
	}
	return nil
}

// Command returns the launcher and arguments that open rawURL on goos
func Command(goos, rawURL string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{rawURL}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}
	default:
		return "xdg-open", []string{rawURL}
	}
}

// startDetached starts the launcher without tying it to the flow's context
// and reaps it in the background.
func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug().Err(err).Str("launcher", name).Msg("Browser launcher exited")
		}
	}()
	return nil
}
