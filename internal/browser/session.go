// Package browser owns the lifetime of one browser-driver process: launch
// with configured preferences, implicit SSO via trusted-auth domains,
// navigation, and guaranteed teardown.
package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("worknight/browser")

// State tracks the session lifecycle. Errored is reachable from any
// non-terminal state; Closed is terminal.
type State int

const (
	StateUnstarted State = iota
	StateStarting
	StateAuthenticated
	StateNavigating
	StateReady
	StateErrored
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateStarting:
		return "starting"
	case StateAuthenticated:
		return "authenticated"
	case StateNavigating:
		return "navigating"
	case StateReady:
		return "ready"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// StartError means the driver could not be launched or the home URL was
// unreachable. Fatal for the current run.
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start browser session: %v", e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Options mirror the development-oriented CLI flags of the tool.
type Options struct {
	Headless    bool
	ProfilePath string
	SlowMo      time.Duration
}

// Session drives one Firefox instance. Not safe for concurrent use; the
// driver protocol is one-operation-at-a-time.
type Session struct {
	opts    Options
	homeURL string

	pw         *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page

	state State
}

func NewSession(opts Options) *Session {
	return &Session{opts: opts, state: StateUnstarted}
}

func (s *Session) State() State {
	return s.state
}

// Page exposes the current page handle to extractors. Extractors must not
// mutate session state beyond what navigation itself causes.
func (s *Session) Page() playwright.Page {
	return s.page
}

// URL reports the address of the current page, or "" before Start.
func (s *Session) URL() string {
	if s.page == nil {
		return ""
	}
	return s.page.URL()
}

// validatePreferences checks the opaque preference mapping at the point
// the driver consumes it: only booleans, integers and strings survive the
// trip through the driver protocol.
func validatePreferences(prefs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(prefs))
	for name, value := range prefs {
		switch v := value.(type) {
		case bool, int, int64, string:
			out[name] = v
		default:
			return nil, fmt.Errorf("browser preference %q has unsupported type %T", name, value)
		}
	}
	return out, nil
}

// Start launches the driver with prefs applied and navigates to homeURL.
// Authentication is implicit: the configured trusted-auth domains let the
// browser negotiate single-sign-on during the first navigation.
func (s *Session) Start(ctx context.Context, homeURL string, prefs map[string]any) error {
	ctx, span := tracer.Start(ctx, "session:Start")
	defer span.End()

	if s.state != StateUnstarted {
		return &StartError{Err: fmt.Errorf("session is %s, not unstarted", s.state)}
	}
	s.state = StateStarting
	s.homeURL = homeURL

	firefoxPrefs, err := validatePreferences(prefs)
	if err != nil {
		return s.fail(err)
	}

	runOpts := &playwright.RunOptions{
		Browsers: []string{"firefox"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return s.fail(fmt.Errorf("install driver: %w", err))
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return s.fail(fmt.Errorf("start driver: %w", err))
	}
	s.pw = pw

	headless := s.opts.Headless
	slowMo := float64(s.opts.SlowMo.Milliseconds())

	if s.opts.ProfilePath != "" {
		browserCtx, err := pw.Firefox.LaunchPersistentContext(
			s.opts.ProfilePath,
			playwright.BrowserTypeLaunchPersistentContextOptions{
				Headless:         playwright.Bool(headless),
				FirefoxUserPrefs: firefoxPrefs,
				SlowMo:           playwright.Float(slowMo),
			},
		)
		if err != nil {
			return s.fail(fmt.Errorf("launch browser with profile: %w", err))
		}
		s.browserCtx = browserCtx
		pages := browserCtx.Pages()
		if len(pages) > 0 {
			s.page = pages[0]
		} else {
			page, err := browserCtx.NewPage()
			if err != nil {
				return s.fail(fmt.Errorf("open page: %w", err))
			}
			s.page = page
		}
	} else {
		browser, err := pw.Firefox.Launch(playwright.BrowserTypeLaunchOptions{
			Headless:         playwright.Bool(headless),
			FirefoxUserPrefs: firefoxPrefs,
			SlowMo:           playwright.Float(slowMo),
		})
		if err != nil {
			return s.fail(fmt.Errorf("launch browser: %w", err))
		}
		s.browser = browser

		browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{})
		if err != nil {
			return s.fail(fmt.Errorf("create browser context: %w", err))
		}
		s.browserCtx = browserCtx

		page, err := browserCtx.NewPage()
		if err != nil {
			return s.fail(fmt.Errorf("open page: %w", err))
		}
		s.page = page
	}

	slog.DebugContext(ctx, "browser launched",
		"headless", headless,
		"profile", s.opts.ProfilePath,
		"preferences", len(firefoxPrefs),
	)

	if _, err := s.page.Goto(homeURL, s.gotoOptions(ctx)); err != nil {
		return s.fail(fmt.Errorf("navigate to %s: %w", homeURL, err))
	}

	s.state = StateAuthenticated
	return nil
}

// Navigate moves the session to a new view. Relative targets resolve
// against the home URL. Callers wrap this with a retry policy; the
// session itself never retries.
func (s *Session) Navigate(ctx context.Context, target string) error {
	ctx, span := tracer.Start(ctx, "session:Navigate")
	defer span.End()

	switch s.state {
	case StateAuthenticated, StateNavigating, StateReady, StateErrored:
	default:
		return fmt.Errorf("cannot navigate: session is %s", s.state)
	}

	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse navigation target %q: %w", target, err)
	}
	if !u.IsAbs() {
		base, err := url.Parse(s.homeURL)
		if err != nil {
			return fmt.Errorf("parse home url %q: %w", s.homeURL, err)
		}
		u = base.ResolveReference(u)
	}

	s.state = StateNavigating
	slog.DebugContext(ctx, "navigating", "url", u.String())

	if _, err := s.page.Goto(u.String(), s.gotoOptions(ctx)); err != nil {
		s.state = StateErrored
		return fmt.Errorf("navigate to %s: %w", u, err)
	}

	s.state = StateReady
	return nil
}

// NavigateHome returns to the configured entry point.
func (s *Session) NavigateHome(ctx context.Context) error {
	return s.Navigate(ctx, s.homeURL)
}

// Content snapshots the rendered HTML of the current page.
func (s *Session) Content() (string, error) {
	if s.page == nil {
		return "", fmt.Errorf("session has no page: state is %s", s.state)
	}
	return s.page.Content()
}

// gotoOptions derives the driver-side navigation timeout from the context
// deadline so a pipeline timeout cuts driver waits short too.
func (s *Session) gotoOptions(ctx context.Context) playwright.PageGotoOptions {
	opts := playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining > 0 {
			opts.Timeout = playwright.Float(float64(remaining.Milliseconds()))
		}
	}
	return opts
}

func (s *Session) fail(err error) error {
	s.release()
	s.state = StateErrored
	return &StartError{Err: err}
}

// Close terminates the driver process. Idempotent: closing twice, or after
// a failed Start, never errors and never leaves a driver running.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.release()
	s.state = StateClosed
	return nil
}

func (s *Session) release() {
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	if s.browserCtx != nil {
		_ = s.browserCtx.Close()
		s.browserCtx = nil
	}
	if s.browser != nil {
		_ = s.browser.Close()
		s.browser = nil
	}
	if s.pw != nil {
		_ = s.pw.Stop()
		s.pw = nil
	}
}
