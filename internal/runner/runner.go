// Package runner drives the sequential submission loop over an email list.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/waitroll/waitroll/internal/targets"
)

// Submitter is satisfied by *submit.Client.
type Submitter interface {
	Submit(ctx context.Context, email string) bool
}

// Tally counts outcomes for a single run.
type Tally struct {
	Succeeded int
	Failed    int
}

type Options struct {
	ResultsPath     string
	DelayMinSeconds float64
	DelayMaxSeconds float64 // must be >= DelayMinSeconds, enforced by config validation

	// Sleep is swapped out in tests. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

type Runner struct {
	client Submitter
	rng    *rand.Rand
	log    *slog.Logger
	opts   Options
}

func New(client Submitter, rng *rand.Rand, log *slog.Logger, opts Options) *Runner {
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Runner{client: client, rng: rng, log: log, opts: opts}
}

// Run submits every email listed at emailsPath, in order, writing one result
// line per email. A failed submission never aborts the run; the only fatal
// conditions are I/O errors on the result file itself. When the email list is
// empty the run ends without creating a result file.
func (r *Runner) Run(ctx context.Context, emailsPath string) (Tally, error) {
	emails := targets.Load(emailsPath, r.log)
	if len(emails) == 0 {
		r.log.Error("no email addresses to process")
		return Tally{}, nil
	}

	out, err := os.Create(r.opts.ResultsPath)
	if err != nil {
		return Tally{}, fmt.Errorf("create results file: %w", err)
	}
	defer out.Close()

	var tally Tally
	for i, email := range emails {
		r.log.Info("processing email", "n", i+1, "total", len(emails), "email", email)

		line := email + ": FAILED\n"
		if r.client.Submit(ctx, email) {
			tally.Succeeded++
			line = email + ": SUCCESS\n"
		} else {
			tally.Failed++
		}

		// out is an unbuffered *os.File: once WriteString returns, the line
		// is handed to the kernel and a killed run keeps a valid prefix.
		if _, err := out.WriteString(line); err != nil {
			return tally, fmt.Errorf("write result line: %w", err)
		}

		if i < len(emails)-1 {
			d := r.pause()
			r.log.Info("waiting before next email", "seconds", fmt.Sprintf("%.2f", d.Seconds()))
			r.opts.Sleep(d)
		}
	}

	r.log.Info("processing completed", "successful", tally.Succeeded, "failed", tally.Failed)
	r.log.Info("results saved", "path", r.opts.ResultsPath)
	return tally, nil
}

// pause draws a delay uniformly from the configured range.
func (r *Runner) pause() time.Duration {
	span := r.opts.DelayMaxSeconds - r.opts.DelayMinSeconds
	seconds := r.opts.DelayMinSeconds + r.rng.Float64()*span
	return time.Duration(seconds * float64(time.Second))
}
