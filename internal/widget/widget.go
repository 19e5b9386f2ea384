// Package widget implements the reseller call-to-action: a floating button and a contact
// modal populated from a reseller lookup, a cookie cache, or configured defaults.
package widget

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/jsontree"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/task"
)

const (
	// ModalDelay is how long the widget waits before prompting with fallback contacts.
	ModalDelay = 3000 * time.Millisecond
	// ResellerQueryParameter carries the reseller identifier in the page URL.
	ResellerQueryParameter = "id"

	ClassButton       = "trc-float-btn"
	ClassModal        = "trc-modal"
	ClassModalContent = "trc-modal-content"
	ClassClose        = "trc-close"

	buttonTitle = "Contact Reseller"

	errorMessageFetch            = "widget: fetch reseller"
	errorMessageUnexpectedStatus = "widget: unexpected lookup status"
	errorMessageMissingStatus    = "widget: lookup status missing"
)

var (
	// ErrFetch wraps transport and decoding failures of the lookup.
	ErrFetch = errors.New(errorMessageFetch)
	// ErrUnexpectedStatus marks a decoded response reporting a non-success status.
	ErrUnexpectedStatus = errors.New(errorMessageUnexpectedStatus)
	// ErrMissingStatus marks a decoded response that is empty or lacks the object holding
	// the status.
	ErrMissingStatus = errors.New(errorMessageMissingStatus)
)

// Host is the page the widget draws into.
type Host interface {
	InstallStyle(css string)
	Append(node *html.Node)
	Remove(node *html.Node)
	// OnClick registers a handler; selfOnly handlers ignore clicks that bubble from children.
	OnClick(node *html.Node, selfOnly bool, handler func())
}

// Fetcher retrieves and decodes a lookup response.
type Fetcher interface {
	Fetch(ctx context.Context, requestURL string) (jsontree.Value, error)
}

// Dependencies are the collaborators of one widget instance. Scheduler, Logger and Clock
// are optional.
type Dependencies struct {
	Host      Host
	Fetcher   Fetcher
	Cookies   CookieJar
	Scheduler task.Scheduler
	Logger    *zap.Logger
	Clock     func() time.Time
}

// Widget drives one page load.
type Widget struct {
	config      Config
	host        Host
	fetcher     Fetcher
	cache       recordCache
	scheduler   task.Scheduler
	ownedTimers *task.Timers
	logger      *zap.Logger
	store       *Store

	stateMutex     sync.Mutex
	state          State
	failure        error
	started        bool
	stopped        bool
	scheduledTasks []task.Task
	done           chan struct{}
}

func New(config Config, dependencies Dependencies) *Widget {
	widget := &Widget{
		config:    config,
		host:      dependencies.Host,
		fetcher:   dependencies.Fetcher,
		scheduler: dependencies.Scheduler,
		logger:    dependencies.Logger,
		store:     NewStore(config.Defaults),
		done:      make(chan struct{}),
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}
	widget.cache = recordCache{jar: dependencies.Cookies, clock: clock}
	if widget.scheduler == nil {
		widget.ownedTimers = task.NewTimers()
		widget.scheduler = widget.ownedTimers
	}
	if widget.logger == nil {
		widget.logger = zap.NewNop()
	}
	return widget
}

// ResellerIDFromURL extracts the reseller identifier from a page URL.
func ResellerIDFromURL(pageURL *url.URL) string {
	if pageURL == nil {
		return ""
	}
	return strings.TrimSpace(pageURL.Query().Get(ResellerQueryParameter))
}

// Config returns the resolved configuration.
func (widget *Widget) Config() Config {
	return widget.config
}

// Record returns the current Data Store contents.
func (widget *Widget) Record() Record {
	return widget.store.Snapshot()
}

// State reports where the orchestrator is.
func (widget *Widget) State() State {
	widget.stateMutex.Lock()
	defer widget.stateMutex.Unlock()
	return widget.state
}

// Failure returns why the lookup failed, if it did.
func (widget *Widget) Failure() error {
	widget.stateMutex.Lock()
	defer widget.stateMutex.Unlock()
	return widget.failure
}

// Start paints the widget and kicks off the lookup for resellerID. The button is always
// mounted before the lookup resolves. Start runs once per widget.
func (widget *Widget) Start(ctx context.Context, resellerID string) {
	widget.stateMutex.Lock()
	if widget.started {
		widget.stateMutex.Unlock()
		return
	}
	widget.started = true
	widget.stateMutex.Unlock()

	if !widget.config.Enabled || widget.host == nil {
		close(widget.done)
		return
	}

	normalizedID := strings.TrimSpace(resellerID)
	if normalizedID == "" {
		widget.restoreFromCache()
	}

	widget.installStyles()
	widget.mountButton()

	if normalizedID != "" {
		widget.transition(StateHasIDPending, nil)
		go widget.fetch(ctx, normalizedID)
		return
	}

	if widget.State() != StateNoIDValidCache {
		widget.scheduleModal()
	}
	close(widget.done)
}

// Wait blocks until the orchestrator settles or ctx ends.
func (widget *Widget) Wait(ctx context.Context) error {
	select {
	case <-widget.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels modal opens that have not fired yet. An in-flight lookup still completes
// and updates the store, but schedules nothing.
func (widget *Widget) Stop() {
	widget.stateMutex.Lock()
	widget.stopped = true
	scheduled := widget.scheduledTasks
	widget.scheduledTasks = nil
	widget.stateMutex.Unlock()

	for _, pending := range scheduled {
		pending.Cancel()
	}
	widget.ownedTimers.Stop()
}

func (widget *Widget) restoreFromCache() {
	cached, status, loadErr := widget.cache.load(widget.config.FieldMapping)
	if loadErr != nil {
		widget.logger.Debug("widget_cache_invalid", zap.Error(loadErr))
	}
	switch status {
	case cacheValid:
		widget.store.Replace(mergeOverDefaults(cached, widget.config.FieldMapping, widget.config.Defaults))
		widget.transition(StateNoIDValidCache, nil)
	case cacheInvalid:
		widget.transition(StateNoIDInvalidCache, nil)
	default:
		widget.transition(StateNoIDNoCache, nil)
	}
}

func (widget *Widget) fetch(ctx context.Context, resellerID string) {
	defer close(widget.done)

	requestURL := LookupURL(widget.config.Endpoint, resellerID)
	fetchContext := context.WithoutCancel(ctx)
	if widget.fetcher == nil {
		widget.fail(fmt.Errorf("%w: no fetcher configured", ErrFetch), requestURL)
		return
	}

	response, fetchErr := widget.fetcher.Fetch(fetchContext, requestURL)
	if fetchErr != nil {
		widget.fail(fmt.Errorf("%w: %w", ErrFetch, fetchErr), requestURL)
		return
	}

	if !response.Truthy() {
		widget.transition(StateHasIDFailure, ErrMissingStatus)
		widget.logger.Debug("widget_lookup_empty_body", zap.String("url", requestURL))
		widget.scheduleModal()
		return
	}
	if container, found := response.Lookup(statusContainerPath(widget.config.StatusPath)); !found || container.IsNull() {
		widget.fail(ErrMissingStatus, requestURL)
		return
	}
	statusNode, _ := response.Lookup(widget.config.StatusPath)
	status, isNumber := statusNode.Number()
	if !isNumber || status != widget.config.SuccessStatus {
		widget.transition(StateHasIDFailure, ErrUnexpectedStatus)
		widget.logger.Debug("widget_lookup_unexpected_status", zap.String("url", requestURL), zap.Any("status", statusNode.Raw()))
		widget.scheduleModal()
		return
	}

	record := MapResponse(response, widget.config.FieldMapping, widget.config.Defaults)
	widget.store.Replace(record)
	widget.transition(StateHasIDSuccess, nil)
	if saveErr := widget.cache.save(record); saveErr != nil {
		widget.logger.Warn("widget_cache_write_failed", zap.Error(saveErr))
	}
}

// statusContainerPath drops the last segment of a dotted status path. An empty result
// addresses the response root.
func statusContainerPath(statusPath string) string {
	trimmed := strings.TrimSpace(statusPath)
	separator := strings.LastIndex(trimmed, ".")
	if separator < 0 {
		return ""
	}
	return trimmed[:separator]
}

func (widget *Widget) fail(failure error, requestURL string) {
	widget.transition(StateHasIDFailure, failure)
	widget.logger.Debug("widget_fetch_failed", zap.String("url", requestURL), zap.Error(failure))
}

func (widget *Widget) transition(next State, failure error) {
	widget.stateMutex.Lock()
	widget.state = next
	widget.failure = failure
	widget.stateMutex.Unlock()
}

func (widget *Widget) scheduleModal() {
	widget.stateMutex.Lock()
	defer widget.stateMutex.Unlock()
	if widget.stopped {
		return
	}
	scheduled := widget.scheduler.AfterFunc(ModalDelay, func() {
		widget.OpenModal()
	})
	widget.scheduledTasks = append(widget.scheduledTasks, scheduled)
}

func (widget *Widget) installStyles() {
	widget.host.InstallStyle(Stylesheet(widget.config, widget.store.Snapshot()))
}

func (widget *Widget) mountButton() {
	button := newElement(atom.Button, ClassButton)
	button.Attr = append(button.Attr,
		html.Attribute{Key: "type", Val: "button"},
		html.Attribute{Key: "title", Val: buttonTitle},
	)
	widget.appendMarkup(button, RenderMarkup(widget.config.ButtonHTML, widget.store.Snapshot(), widget.config))
	widget.host.OnClick(button, false, func() {
		widget.OpenModal()
	})
	widget.host.Append(button)
}

// OpenModal builds a modal from the current record and adds it to the page. Each call adds
// another overlay.
func (widget *Widget) OpenModal() *html.Node {
	overlay := newElement(atom.Div, ClassModal)
	content := newElement(atom.Div, ClassModalContent)
	content.Attr = append(content.Attr, html.Attribute{Key: "style", Val: "position: relative;"})
	widget.appendMarkup(content, RenderMarkup(widget.config.ModalHTML, widget.store.Snapshot(), widget.config))
	overlay.AppendChild(content)

	dismiss := func() {
		widget.host.Remove(overlay)
	}
	for _, closeControl := range findByClass(content, ClassClose) {
		widget.host.OnClick(closeControl, false, dismiss)
	}
	widget.host.OnClick(overlay, true, dismiss)
	widget.host.Append(overlay)
	return overlay
}

func (widget *Widget) appendMarkup(parent *html.Node, markup string) {
	children, parseErr := html.ParseFragment(strings.NewReader(markup), parent)
	if parseErr != nil {
		widget.logger.Debug("widget_markup_invalid", zap.Error(parseErr))
		parent.AppendChild(&html.Node{Type: html.TextNode, Data: markup})
		return
	}
	for _, child := range children {
		parent.AppendChild(child)
	}
}

// LookupURL joins the endpoint base and the escaped reseller identifier.
func LookupURL(endpoint string, resellerID string) string {
	escapedID := url.PathEscape(resellerID)
	if strings.HasSuffix(endpoint, "/") || strings.HasSuffix(endpoint, "=") {
		return endpoint + escapedID
	}
	return endpoint + "/" + escapedID
}

func newElement(tag atom.Atom, className string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag.String(),
		DataAtom: tag,
		Attr:     []html.Attribute{{Key: "class", Val: className}},
	}
}

// HasClass reports whether an element carries the class name.
func HasClass(node *html.Node, className string) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	for _, attribute := range node.Attr {
		if attribute.Key != "class" {
			continue
		}
		for _, candidate := range strings.Fields(attribute.Val) {
			if candidate == className {
				return true
			}
		}
	}
	return false
}

func findByClass(root *html.Node, className string) []*html.Node {
	var matches []*html.Node
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if HasClass(node, className) {
			matches = append(matches, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return matches
}
