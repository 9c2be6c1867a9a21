package browserauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	apperrors "github.com/ebaygate/ebaygate/internal/errors"
	"github.com/ebaygate/ebaygate/internal/logging"
)

// Selectors for eBay's hosted signin and consent pages. These track
// the live markup and are the first thing to check when automated
// login starts failing.
const (
	selUsername        = "#userid"
	selUsernameSubmit  = "#signin-continue-btn"
	selPassword        = "#pass"
	selPasswordSubmit  = "#sgnBt"
	selConsentSubmit   = "#submit"
	redirectPollPeriod = 250 * time.Millisecond
)

const (
	defaultFieldTimeout    = 10 * time.Second
	defaultConsentTimeout  = 15 * time.Second
	defaultRedirectTimeout = 30 * time.Second
)

// ChromeAuthorizer drives a headless Chrome instance through the
// hosted login flow. One browser process per Authorize call, released
// on every exit path.
type ChromeAuthorizer struct {
	logger   *logging.Logger
	execPath string
	headless bool

	fieldTimeout    time.Duration
	consentTimeout  time.Duration
	redirectTimeout time.Duration

	// run executes chromedp actions; swapped out in tests so the flow
	// can be exercised without launching a browser.
	run func(ctx context.Context, actions ...chromedp.Action) error
}

type ChromeOption func(*ChromeAuthorizer)

func WithLogger(l *logging.Logger) ChromeOption {
	return func(a *ChromeAuthorizer) { a.logger = l }
}

// WithExecPath points at a specific Chrome/Chromium binary instead of
// whatever chromedp finds on PATH.
func WithExecPath(path string) ChromeOption {
	return func(a *ChromeAuthorizer) { a.execPath = path }
}

// WithHeadful runs a visible browser window, useful when debugging
// selector drift locally.
func WithHeadful() ChromeOption {
	return func(a *ChromeAuthorizer) { a.headless = false }
}

// WithStepTimeouts overrides the per-stage waits. Zero values keep the
// defaults (10s form fields, 15s consent, 30s redirect).
func WithStepTimeouts(field, consent, redirect time.Duration) ChromeOption {
	return func(a *ChromeAuthorizer) {
		if field > 0 {
			a.fieldTimeout = field
		}
		if consent > 0 {
			a.consentTimeout = consent
		}
		if redirect > 0 {
			a.redirectTimeout = redirect
		}
	}
}

func NewChromeAuthorizer(opts ...ChromeOption) *ChromeAuthorizer {
	a := &ChromeAuthorizer{
		logger:          logging.NewLogger(),
		headless:        true,
		fieldTimeout:    defaultFieldTimeout,
		consentTimeout:  defaultConsentTimeout,
		redirectTimeout: defaultRedirectTimeout,
		run:             chromedp.Run,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ Authorizer = (*ChromeAuthorizer)(nil)

// Authorize runs one full login attempt: navigate, username,
// password, optional consent, then wait for the code= redirect. Any
// per-stage timeout or an error= redirect is terminal.
func (a *ChromeAuthorizer) Authorize(ctx context.Context, req LoginRequest) (string, error) {
	if req.Username == "" || req.Password == "" {
		return "", loginError(apperrors.LoginStageNavigate, false,
			fmt.Errorf("seller credentials not stored for this connection"))
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", a.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if a.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(a.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	a.logger.Info("starting automated login", "username", req.Username)

	// The redirect target is often an application URL the browser
	// cannot actually load, so watch outgoing requests for it instead
	// of relying on the page rendering.
	redirectHit := make(chan string, 1)
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if reqEv, ok := ev.(*network.EventRequestWillBeSent); ok {
			if reachedRedirect(reqEv.Request.URL, req.RedirectURL) {
				select {
				case redirectHit <- reqEv.Request.URL:
				default:
				}
			}
		}
	})

	if err := a.step(browserCtx, apperrors.LoginStageNavigate, a.fieldTimeout,
		network.Enable(),
		chromedp.Navigate(req.AuthURL),
	); err != nil {
		return "", err
	}

	if err := a.step(browserCtx, apperrors.LoginStageUsername, a.fieldTimeout,
		chromedp.WaitVisible(selUsername, chromedp.ByID),
		chromedp.SendKeys(selUsername, req.Username, chromedp.ByID),
		chromedp.Click(selUsernameSubmit, chromedp.ByID),
	); err != nil {
		return "", err
	}

	if err := a.step(browserCtx, apperrors.LoginStagePassword, a.fieldTimeout,
		chromedp.WaitVisible(selPassword, chromedp.ByID),
		chromedp.SendKeys(selPassword, req.Password, chromedp.ByID),
		chromedp.Click(selPasswordSubmit, chromedp.ByID),
	); err != nil {
		return "", err
	}

	// The consent page only appears on first authorization or after a
	// scope change; otherwise eBay redirects straight away. A consent
	// click that times out is therefore not an error on its own.
	if err := a.step(browserCtx, apperrors.LoginStageConsent, a.consentTimeout,
		chromedp.WaitVisible(selConsentSubmit, chromedp.ByID),
		chromedp.Click(selConsentSubmit, chromedp.ByID),
	); err != nil {
		var loginErr *apperrors.ErrAutomatedLogin
		if !errors.As(err, &loginErr) || !loginErr.Timeout {
			return "", err
		}
		a.logger.Debug("consent page not shown, assuming prior grant")
	}

	finalURL, err := a.waitForRedirect(browserCtx, req.RedirectURL, redirectHit)
	if err != nil {
		return "", err
	}

	code, err := parseRedirect(finalURL)
	if err != nil {
		return "", loginError(apperrors.LoginStageRedirect, false, err)
	}

	a.logger.Info("automated login obtained authorization code", "username", req.Username)
	return code, nil
}

func (a *ChromeAuthorizer) step(ctx context.Context, stage apperrors.LoginStage, timeout time.Duration, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.run(stepCtx, actions...); err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded)
		a.logger.Warn("automated login step failed",
			"stage", string(stage), "timeout", timedOut, "error", err.Error())
		return loginError(stage, timedOut, err)
	}
	return nil
}

// waitForRedirect waits until the browser requests the registered
// redirect target, either seen on the network listener or by polling
// the current location.
func (a *ChromeAuthorizer) waitForRedirect(ctx context.Context, redirectURL string, hit <-chan string) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, a.redirectTimeout)
	defer cancel()

	ticker := time.NewTicker(redirectPollPeriod)
	defer ticker.Stop()

	for {
		select {
		case u := <-hit:
			return u, nil
		case <-waitCtx.Done():
			return "", loginError(apperrors.LoginStageRedirect, true,
				fmt.Errorf("no redirect to %s within %s", redirectURL, a.redirectTimeout))
		case <-ticker.C:
			var current string
			if err := a.run(waitCtx, chromedp.Location(&current)); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				return "", loginError(apperrors.LoginStageRedirect, false, err)
			}
			if reachedRedirect(current, redirectURL) {
				return current, nil
			}
		}
	}
}
