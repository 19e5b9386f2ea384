package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/page"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/task"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/widget"
)

const (
	// DefaultWidgetScriptURL is where the bootstrap runtime is served.
	DefaultWidgetScriptURL = "/widget.js"
	defaultLookupWait      = 5 * time.Second

	errorMessageInjectParse  = "inject: parse page"
	errorMessageInjectRender = "inject: render page"
)

// Injection is a page with the widget drawn into it.
type Injection struct {
	Body    []byte
	Cookies []*http.Cookie
	State   widget.State
}

// WidgetInjector draws the reseller widget into HTML pages on their way to the browser.
type WidgetInjector struct {
	config     widget.Config
	fetcher    widget.Fetcher
	logger     *zap.Logger
	scriptURL  string
	lookupWait time.Duration
	clock      func() time.Time
}

func NewWidgetInjector(config widget.Config, fetcher widget.Fetcher, logger *zap.Logger, scriptURL string, lookupWait time.Duration) *WidgetInjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scriptURL == "" {
		scriptURL = DefaultWidgetScriptURL
	}
	if lookupWait <= 0 {
		lookupWait = defaultLookupWait
	}
	return &WidgetInjector{
		config:     config,
		fetcher:    fetcher,
		logger:     logger,
		scriptURL:  scriptURL,
		lookupWait: lookupWait,
		clock:      time.Now,
	}
}

// Config returns the widget configuration shared by every injected page.
func (injector *WidgetInjector) Config() widget.Config {
	return injector.config
}

// Inject runs one widget page load against markup. The page URL and cookies come from
// request; cookies the widget persists are returned for the response.
func (injector *WidgetInjector) Inject(ctx context.Context, request *http.Request, markup []byte) (Injection, error) {
	document, parseErr := page.ParseBytes(markup)
	if parseErr != nil {
		return Injection{}, fmt.Errorf("%s: %w", errorMessageInjectParse, parseErr)
	}

	jar := newRequestCookieJar(request)
	queue := task.NewQueue()
	instance := widget.New(injector.config, widget.Dependencies{
		Host:      document,
		Fetcher:   injector.fetcher,
		Cookies:   jar,
		Scheduler: queue,
		Logger:    injector.logger,
		Clock:     injector.clock,
	})

	instance.Start(ctx, widget.ResellerIDFromURL(request.URL))

	waitContext, cancel := context.WithTimeout(ctx, injector.lookupWait)
	defer cancel()
	if waitErr := instance.Wait(waitContext); waitErr != nil {
		instance.Stop()
		if !errors.Is(waitErr, context.DeadlineExceeded) {
			return Injection{}, waitErr
		}
		injector.logger.Debug("widget_lookup_unsettled", zap.String("state", instance.State().String()))
	}

	scriptURL := injector.scriptURL
	if !injector.config.Enabled {
		scriptURL = ""
	}
	document.Finalize(queue.Drain(), scriptURL)
	body, renderErr := document.Bytes()
	if renderErr != nil {
		return Injection{}, fmt.Errorf("%s: %w", errorMessageInjectRender, renderErr)
	}
	return Injection{Body: body, Cookies: jar.written(), State: instance.State()}, nil
}

// requestCookieJar reads cookies sent with one request and collects the ones to send back.
type requestCookieJar struct {
	request     *http.Request
	jarMutex    sync.Mutex
	pending     []*http.Cookie
	pendingByID map[string]int
}

func newRequestCookieJar(request *http.Request) *requestCookieJar {
	return &requestCookieJar{request: request, pendingByID: make(map[string]int)}
}

func (jar *requestCookieJar) Cookie(name string) (string, bool) {
	jar.jarMutex.Lock()
	defer jar.jarMutex.Unlock()
	if index, found := jar.pendingByID[name]; found {
		return jar.pending[index].Value, true
	}
	if jar.request == nil {
		return "", false
	}
	cookie, cookieErr := jar.request.Cookie(name)
	if cookieErr != nil {
		return "", false
	}
	return cookie.Value, true
}

func (jar *requestCookieJar) SetCookie(cookie *http.Cookie) {
	if cookie == nil {
		return
	}
	jar.jarMutex.Lock()
	defer jar.jarMutex.Unlock()
	if index, found := jar.pendingByID[cookie.Name]; found {
		jar.pending[index] = cookie
		return
	}
	jar.pendingByID[cookie.Name] = len(jar.pending)
	jar.pending = append(jar.pending, cookie)
}

func (jar *requestCookieJar) written() []*http.Cookie {
	jar.jarMutex.Lock()
	defer jar.jarMutex.Unlock()
	return append([]*http.Cookie(nil), jar.pending...)
}
