// Package health checks whether everything a run needs is in place.
package health

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/provider"
)

type Status struct {
	Provider  string
	Model     string
	Reachable bool
	ModelOK   bool
	Models    []string
	Error     string
	Latency   time.Duration
}

// Check verifies that the reasoning endpoint answers a model listing and
// that the configured model is on it. Endpoints that list no models are
// taken on trust.
func Check(ctx context.Context, prov provider.Provider) Status {
	s := Status{Provider: prov.Name(), Model: prov.ModelName()}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	models, err := prov.Models(ctx)
	s.Latency = time.Since(start)
	if err != nil {
		s.Error = describe(err)
		return s
	}
	s.Reachable = true
	s.Models = models
	if len(models) == 0 {
		s.ModelOK = true
		return s
	}
	for _, m := range models {
		if m == s.Model {
			s.ModelOK = true
			return s
		}
	}
	s.Error = fmt.Sprintf("model %q not found, available: %s", s.Model, strings.Join(models, ", "))
	return s
}

func describe(err error) string {
	var perr *provider.Error
	if errors.As(err, &perr) {
		if perr.StatusCode == 401 || perr.StatusCode == 403 {
			return "authentication failed, check your API key"
		}
		return perr.Error()
	}
	return err.Error()
}

// Item is one line of a doctor report.
type Item struct {
	Name   string
	OK     bool
	Detail string
}

// Report is the full doctor result.
type Report struct {
	Items []Item
}

func (r Report) OK() bool {
	for _, it := range r.Items {
		if !it.OK {
			return false
		}
	}
	return true
}

// chromeCandidates are the browser binaries chromedp's allocator looks for.
var chromeCandidates = []string{
	"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell", "chrome",
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// FindChrome returns the browser binary a run would start.
func FindChrome(override string) (string, error) {
	if override != "" {
		return lookPath(override)
	}
	for _, name := range chromeCandidates {
		if p, err := lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", errors.New("no Chrome or Chromium found on PATH (set emulator.chrome_path)")
}

// Doctor runs every check. prov may be nil when no API key is set.
func Doctor(ctx context.Context, cfg *config.Config, prov provider.Provider) Report {
	var r Report

	if err := cfg.CheckPrerequisites(); err != nil {
		r.Items = append(r.Items, Item{Name: "prerequisites", Detail: err.Error()})
	} else {
		r.Items = append(r.Items, Item{Name: "prerequisites", OK: true, Detail: "ROM, emulator page and API key present"})
	}

	if path, err := FindChrome(cfg.Emulator.ChromePath); err != nil {
		r.Items = append(r.Items, Item{Name: "browser", Detail: err.Error()})
	} else {
		r.Items = append(r.Items, Item{Name: "browser", OK: true, Detail: path})
	}

	if prov == nil {
		r.Items = append(r.Items, Item{Name: "reasoning service", Detail: "skipped: no provider configured"})
		return r
	}
	s := Check(ctx, prov)
	item := Item{Name: "reasoning service", OK: s.Reachable && s.ModelOK}
	if item.OK {
		item.Detail = fmt.Sprintf("%s model %s (%v)", s.Provider, s.Model, s.Latency.Round(time.Millisecond))
	} else {
		item.Detail = s.Error
	}
	r.Items = append(r.Items, item)
	return r
}
