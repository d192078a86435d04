package jobplanet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/byeongteuk/btmap/internal/resilience"
)

// Page is a rendered page snapshot.
type Page struct {
	URL    string // final URL after redirects
	Status int    // document response status, 0 when unknown
	Title  string
	HTML   string
	Text   string // visible body text, one line per block
}

// Browser renders pages in a logged-in session.
type Browser interface {
	// Navigate loads url and returns the rendered page.
	Navigate(ctx context.Context, url string) (*Page, error)
	// Login fills and submits the sign-in form at loginURL and returns the
	// page the site lands on afterwards.
	Login(ctx context.Context, loginURL, email, password string) (*Page, error)
	Close()
}

// ChromeConfig controls the headless Chrome session.
type ChromeConfig struct {
	Headless   bool
	UserAgent  string
	NavTimeout time.Duration
	Settle     time.Duration // wait after load for client-side rendering
}

// Chrome implements Browser with chromedp. A single tab is kept for the
// lifetime of the browser so the login cookie carries across navigations.
type Chrome struct {
	cfg         ChromeConfig
	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc

	startOnce sync.Once
	startErr  error
	status    *documentStatus
}

// NewChrome starts a Chrome allocator. The browser process itself is
// launched on first use.
func NewChrome(cfg ChromeConfig) *Chrome {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 2 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	return &Chrome{
		cfg:         cfg,
		allocCancel: allocCancel,
		tab:         tab,
		tabCancel:   tabCancel,
		status:      &documentStatus{},
	}
}

// Close shuts the browser down.
func (b *Chrome) Close() {
	b.tabCancel()
	b.allocCancel()
}

func (b *Chrome) start() error {
	b.startOnce.Do(func() {
		chromedp.ListenTarget(b.tab, b.status.capture)
		if err := chromedp.Run(b.tab, network.Enable()); err != nil {
			b.startErr = eris.Wrap(err, "jobplanet: start chrome")
		}
	})
	return b.startErr
}

// runContext bounds one browser action by the navigation timeout and the
// caller's context. Cancelling it does not close the tab.
func (b *Chrome) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(b.tab, b.cfg.NavTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Navigate implements Browser.
func (b *Chrome) Navigate(ctx context.Context, url string) (*Page, error) {
	if err := b.start(); err != nil {
		return nil, err
	}
	runCtx, cancel := b.runContext(ctx)
	defer cancel()

	b.status.reset()
	p := &Page{}
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.cfg.Settle),
		snapshot(p),
	)
	if err != nil {
		return nil, b.classify(ctx, err, "navigate "+url)
	}
	p.Status = b.status.get()
	return p, nil
}

// Login implements Browser.
func (b *Chrome) Login(ctx context.Context, loginURL, email, password string) (*Page, error) {
	if err := b.start(); err != nil {
		return nil, err
	}
	runCtx, cancel := b.runContext(ctx)
	defer cancel()

	p := &Page{}
	err := chromedp.Run(runCtx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible("#user_email", chromedp.ByQuery),
		chromedp.Click("#user_email", chromedp.ByQuery),
		chromedp.SendKeys("#user_email", email, chromedp.ByQuery),
		chromedp.Click("#user_password", chromedp.ByQuery),
		chromedp.SendKeys("#user_password", password, chromedp.ByQuery),
		chromedp.ScrollIntoView("button.btn_sign_up", chromedp.ByQuery),
		chromedp.Click("button.btn_sign_up", chromedp.ByQuery),
		chromedp.Sleep(2*b.cfg.Settle),
		chromedp.WaitReady("body", chromedp.ByQuery),
		snapshot(p),
	)
	if err != nil {
		return nil, b.classify(ctx, err, "login")
	}
	return p, nil
}

func snapshot(p *Page) chromedp.Action {
	return chromedp.Tasks{
		chromedp.Location(&p.URL),
		chromedp.Title(&p.Title),
		chromedp.OuterHTML("html", &p.HTML, chromedp.ByQuery),
		chromedp.Text("body", &p.Text, chromedp.ByQuery),
	}
}

// classify maps a chromedp failure onto the resilience taxonomy. Timeouts
// and browser errors are worth another attempt; a cancelled caller is not.
func (b *Chrome) classify(ctx context.Context, err error, action string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(b.tab.Err(), context.Canceled) {
		return eris.Wrapf(err, "jobplanet: %s: browser closed", action)
	}
	return resilience.NewTransientError(eris.Wrapf(err, "jobplanet: %s", action), 0)
}

// documentStatus records the status of the last document response.
type documentStatus struct {
	mu     sync.Mutex
	status int
}

func (s *documentStatus) capture(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	s.mu.Lock()
	s.status = int(resp.Response.Status)
	s.mu.Unlock()
}

func (s *documentStatus) reset() {
	s.mu.Lock()
	s.status = 0
	s.mu.Unlock()
}

func (s *documentStatus) get() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
