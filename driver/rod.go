package driver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// LocateExecutable finds a locally installed browser binary. It is the
// default LocateFunc used at pool initialization.
func LocateExecutable() (string, bool) {
	return launcher.LookPath()
}

// NewRodDriver returns the production Driver backed by go-rod.
func NewRodDriver() Driver {
	return rodDriver{}
}

type rodDriver struct{}

func (rodDriver) Launch(ctx context.Context, executablePath string, opts LaunchOptions) (Browser, error) {
	l := launcher.New().
		Bin(executablePath).
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox)

	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}

	// Flags that keep background tabs responsive while pooled; throttled
	// renderers stall WaitDOMStable on idle pages.
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Delete(flags.Flag("enable-automation"))

	for k, v := range opts.Args {
		l.Set(flags.Flag(k), v)
	}

	// Only the launch itself is bound to ctx; the browser outlives it.
	l = l.Context(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, err
	}

	b := &rodBrowser{
		launcher:     l,
		browser:      browser,
		disconnected: make(chan struct{}),
	}
	go b.watch()
	return b, nil
}

type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser

	disconnected chan struct{}
	closeOnce    sync.Once
	closed       bool
	mu           sync.Mutex
}

// watch drains the browser's CDP event stream. The channel closes when the
// control connection drops, which is the disconnect signal.
func (b *rodBrowser) watch() {
	for range b.browser.Event() {
	}
	b.mu.Lock()
	orderly := b.closed
	b.mu.Unlock()
	if orderly {
		return
	}
	slog.Warn("browser control connection lost")
	b.closeOnce.Do(func() { close(b.disconnected) })
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The page must not inherit ctx: it outlives the acquire call that
	// created it.
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	return &rodPage{page: page}, nil
}

func (b *rodBrowser) Disconnected() <-chan struct{} {
	return b.disconnected
}

func (b *rodBrowser) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Reset() error {
	return p.page.Navigate("about:blank")
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

func (p *rodPage) Rod() *rod.Page {
	return p.page
}
