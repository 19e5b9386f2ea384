package widget_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/jsontree"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/page"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/task"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/widget"
)

const (
	testResellerID        = "42"
	testSuccessPayload    = `{"code":"success","data":{"status":200,"reseller":{"id":42,"nickname":"Bob","billing_phone":"555-0100","url":"https://bob.example"}}}`
	testNotFoundPayload   = `{"code":"user_not_found","message":"Reseller not found","data":{"status":404}}`
	testTextStatusPayload = `{"data":{"status":"200","reseller":{"nickname":"Bob"}}}`
	testNoStatusPayload   = `{"data":{"reseller":{"nickname":"Bob"}}}`
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type memoryCookieJar struct {
	jarMutex sync.Mutex
	values   map[string]string
	written  []*http.Cookie
}

func newMemoryCookieJar() *memoryCookieJar {
	return &memoryCookieJar{values: make(map[string]string)}
}

func (jar *memoryCookieJar) Cookie(name string) (string, bool) {
	jar.jarMutex.Lock()
	defer jar.jarMutex.Unlock()
	value, found := jar.values[name]
	return value, found
}

func (jar *memoryCookieJar) SetCookie(cookie *http.Cookie) {
	jar.jarMutex.Lock()
	defer jar.jarMutex.Unlock()
	jar.values[cookie.Name] = cookie.Value
	jar.written = append(jar.written, cookie)
}

func (jar *memoryCookieJar) writtenCookies() []*http.Cookie {
	jar.jarMutex.Lock()
	defer jar.jarMutex.Unlock()
	return append([]*http.Cookie(nil), jar.written...)
}

type stubFetcher struct {
	fetchMutex sync.Mutex
	payload    string
	failure    error
	requested  []string
}

func (fetcher *stubFetcher) Fetch(_ context.Context, requestURL string) (jsontree.Value, error) {
	fetcher.fetchMutex.Lock()
	fetcher.requested = append(fetcher.requested, requestURL)
	fetcher.fetchMutex.Unlock()
	if fetcher.failure != nil {
		return jsontree.Value{}, fetcher.failure
	}
	return jsontree.Parse([]byte(fetcher.payload))
}

func (fetcher *stubFetcher) requestedURLs() []string {
	fetcher.fetchMutex.Lock()
	defer fetcher.fetchMutex.Unlock()
	return append([]string(nil), fetcher.requested...)
}

type widgetHarness struct {
	document *page.Document
	queue    *task.Queue
	jar      *memoryCookieJar
	fetcher  *stubFetcher
	widget   *widget.Widget
}

func newWidgetHarness(testingT *testing.T, overrides widget.Overrides) *widgetHarness {
	testingT.Helper()
	harness := &widgetHarness{
		document: page.Blank(),
		queue:    task.NewQueue(),
		jar:      newMemoryCookieJar(),
		fetcher:  &stubFetcher{},
	}
	harness.widget = widget.New(widget.Resolve(overrides), widget.Dependencies{
		Host:      harness.document,
		Fetcher:   harness.fetcher,
		Cookies:   harness.jar,
		Scheduler: harness.queue,
		Clock: func() time.Time {
			return testNow
		},
	})
	return harness
}

func (harness *widgetHarness) start(testingT *testing.T, resellerID string) {
	testingT.Helper()
	harness.widget.Start(context.Background(), resellerID)
	waitContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(testingT, harness.widget.Wait(waitContext))
}

func (harness *widgetHarness) modals() int {
	return len(harness.document.FindByClass(widget.ClassModal))
}

func (harness *widgetHarness) buttons() int {
	return len(harness.document.FindByClass(widget.ClassButton))
}

func TestWidgetWithoutIDOrCookieOpensModalAfterDelay(testingT *testing.T) {
	harness := newWidgetHarness(testingT, nil)
	harness.start(testingT, "")

	require.Equal(testingT, widget.StateNoIDNoCache, harness.widget.State())
	require.Equal(testingT, 1, harness.buttons())
	require.Equal(testingT, widget.DefaultValues(), harness.widget.Record())
	require.Equal(testingT, 0, harness.modals())

	harness.queue.Advance(widget.ModalDelay - time.Millisecond)
	require.Equal(testingT, 0, harness.modals())

	harness.queue.Advance(time.Millisecond)
	modals := harness.document.FindByClass(widget.ClassModal)
	require.Len(testingT, modals, 1)
	modalText := page.TextContent(modals[0])
	require.Contains(testingT, modalText, widget.DefaultMessage+" "+widget.DefaultName)
	require.Contains(testingT, modalText, widget.DefaultPhone)
	require.Empty(testingT, harness.fetcher.requestedURLs())
	require.Empty(testingT, harness.jar.writtenCookies())
}

func TestWidgetWithValidCookieSkipsModal(testingT *testing.T) {
	cached := widget.Record{"nickname": "Acme", "billing_phone": "555", "url": "https://acme.test"}
	encoded, encodeErr := widget.EncodeRecord(cached)
	require.NoError(testingT, encodeErr)

	harness := newWidgetHarness(testingT, nil)
	harness.jar.values[widget.CookieName] = encoded
	harness.start(testingT, "")

	require.Equal(testingT, widget.StateNoIDValidCache, harness.widget.State())
	require.Equal(testingT, cached, harness.widget.Record())
	require.Equal(testingT, 0, harness.queue.Len())

	harness.queue.Advance(10 * widget.ModalDelay)
	require.Equal(testingT, 0, harness.modals())

	harness.document.Click(harness.document.FindByClass(widget.ClassButton)[0])
	modals := harness.document.FindByClass(widget.ClassModal)
	require.Len(testingT, modals, 1)
	require.Contains(testingT, page.TextContent(modals[0]), "Acme")
}

func TestWidgetWithPartialCookieDefaultsMissingFields(testingT *testing.T) {
	encoded, encodeErr := widget.EncodeRecord(widget.Record{"nickname": "Acme", "billing_phone": ""})
	require.NoError(testingT, encodeErr)

	harness := newWidgetHarness(testingT, nil)
	harness.jar.values[widget.CookieName] = encoded
	harness.start(testingT, "")

	require.Equal(testingT, widget.StateNoIDValidCache, harness.widget.State())
	record := harness.widget.Record()
	require.Equal(testingT, "Acme", record["nickname"])
	require.Equal(testingT, widget.DefaultPhone, record["billing_phone"])
	require.Equal(testingT, widget.DefaultWebsite, record["url"])
}

func TestWidgetWithInvalidCookieOpensModalAfterDelay(testingT *testing.T) {
	for _, cookieValue := range []string{"%7Bbroken", "%7B%22nickname%22%3A%22%22%7D"} {
		harness := newWidgetHarness(testingT, nil)
		harness.jar.values[widget.CookieName] = cookieValue
		harness.start(testingT, "")

		require.Equal(testingT, widget.StateNoIDInvalidCache, harness.widget.State())
		require.Equal(testingT, widget.DefaultValues(), harness.widget.Record())
		harness.queue.Advance(widget.ModalDelay)
		require.Equal(testingT, 1, harness.modals())
	}
}

func TestWidgetSuccessfulLookupUpdatesStoreAndCookie(testingT *testing.T) {
	harness := newWidgetHarness(testingT, nil)
	harness.fetcher.payload = testSuccessPayload
	harness.start(testingT, testResellerID)

	require.Equal(testingT, widget.StateHasIDSuccess, harness.widget.State())
	require.NoError(testingT, harness.widget.Failure())
	require.Equal(testingT, []string{widget.DefaultEndpoint + testResellerID}, harness.fetcher.requestedURLs())

	expected := widget.Record{"nickname": "Bob", "billing_phone": "555-0100", "url": "https://bob.example"}
	require.Equal(testingT, expected, harness.widget.Record())

	cookies := harness.jar.writtenCookies()
	require.Len(testingT, cookies, 1)
	require.Equal(testingT, widget.CookieName, cookies[0].Name)
	require.Equal(testingT, "/", cookies[0].Path)
	require.True(testingT, testNow.Add(widget.CookieLifetime).Equal(cookies[0].Expires))
	persisted, decodeErr := widget.DecodeRecord(cookies[0].Value)
	require.NoError(testingT, decodeErr)
	require.Equal(testingT, expected, persisted)

	require.Equal(testingT, 1, harness.buttons())
	require.Equal(testingT, 0, harness.queue.Len())
	harness.queue.Advance(10 * widget.ModalDelay)
	require.Equal(testingT, 0, harness.modals())

	harness.document.Click(harness.document.FindByClass(widget.ClassButton)[0])
	require.Contains(testingT, page.TextContent(harness.document.FindByClass(widget.ClassModal)[0]), "Bob")
}

func TestWidgetModalShowsLookupValuesAsText(testingT *testing.T) {
	harness := newWidgetHarness(testingT, nil)
	harness.fetcher.payload = `{"data":{"status":200,"reseller":{"nickname":"<img src=x onerror=alert(1)>","billing_phone":"0900\" onclick=\"x","url":"https://bob.example"}}}`
	harness.start(testingT, testResellerID)
	require.Equal(testingT, widget.StateHasIDSuccess, harness.widget.State())

	harness.document.Click(harness.document.FindByClass(widget.ClassButton)[0])
	modal := harness.document.FindByClass(widget.ClassModal)[0]
	require.Contains(testingT, page.TextContent(modal), "<img src=x onerror=alert(1)>")

	links := harness.document.FindByClass("trc-btn")
	require.Len(testingT, links, 2)
	require.Equal(testingT, `tel:0900" onclick="x`, page.Attribute(links[0], "href"))
	require.Empty(testingT, page.Attribute(links[0], "onclick"))
}

func TestWidgetSuccessfulLookupFillsEmptyFieldsFromDefaults(testingT *testing.T) {
	harness := newWidgetHarness(testingT, nil)
	harness.fetcher.payload = `{"data":{"status":200,"reseller":{"nickname":"Bob","billing_phone":""}}}`
	harness.start(testingT, testResellerID)

	record := harness.widget.Record()
	require.Equal(testingT, "Bob", record["nickname"])
	require.Equal(testingT, widget.DefaultPhone, record["billing_phone"])
	require.Equal(testingT, widget.DefaultWebsite, record["url"])
}

func TestWidgetNotFoundLookupOpensFallbackModal(testingT *testing.T) {
	harness := newWidgetHarness(testingT, nil)
	harness.fetcher.payload = testNotFoundPayload
	harness.start(testingT, testResellerID)

	require.Equal(testingT, widget.StateHasIDFailure, harness.widget.State())
	require.ErrorIs(testingT, harness.widget.Failure(), widget.ErrUnexpectedStatus)
	require.Equal(testingT, widget.DefaultValues(), harness.widget.Record())
	require.Empty(testingT, harness.jar.writtenCookies())

	harness.queue.Advance(widget.ModalDelay - time.Millisecond)
	require.Equal(testingT, 0, harness.modals())
	harness.queue.Advance(time.Millisecond)
	modals := harness.document.FindByClass(widget.ClassModal)
	require.Len(testingT, modals, 1)
	require.Contains(testingT, page.TextContent(modals[0]), widget.DefaultName)
}

func TestWidgetTextualStatusCountsAsFailure(testingT *testing.T) {
	harness := newWidgetHarness(testingT, nil)
	harness.fetcher.payload = testTextStatusPayload
	harness.start(testingT, testResellerID)

	require.ErrorIs(testingT, harness.widget.Failure(), widget.ErrUnexpectedStatus)
	require.Equal(testingT, 1, harness.queue.Len())
}

func TestWidgetStatusOutcomes(testingT *testing.T) {
	testCases := []struct {
		name            string
		payload         string
		expectedFailure error
		expectModal     bool
	}{
		{name: "status absent from data", payload: testNoStatusPayload, expectedFailure: widget.ErrUnexpectedStatus, expectModal: true},
		{name: "null status", payload: `{"data":{"status":null}}`, expectedFailure: widget.ErrUnexpectedStatus, expectModal: true},
		{name: "empty data object", payload: `{"data":{}}`, expectedFailure: widget.ErrUnexpectedStatus, expectModal: true},
		{name: "scalar data", payload: `{"data":"oops"}`, expectedFailure: widget.ErrUnexpectedStatus, expectModal: true},
		{name: "null body", payload: `null`, expectedFailure: widget.ErrMissingStatus, expectModal: true},
		{name: "false body", payload: `false`, expectedFailure: widget.ErrMissingStatus, expectModal: true},
		{name: "data absent", payload: `{"code":"rest_no_route"}`, expectedFailure: widget.ErrMissingStatus, expectModal: false},
		{name: "null data", payload: `{"data":null}`, expectedFailure: widget.ErrMissingStatus, expectModal: false},
		{name: "array body", payload: `[1,2]`, expectedFailure: widget.ErrMissingStatus, expectModal: false},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(subTestingT *testing.T) {
			harness := newWidgetHarness(subTestingT, nil)
			harness.fetcher.payload = testCase.payload
			harness.start(subTestingT, testResellerID)

			require.Equal(subTestingT, widget.StateHasIDFailure, harness.widget.State())
			require.ErrorIs(subTestingT, harness.widget.Failure(), testCase.expectedFailure)
			require.Equal(subTestingT, widget.DefaultValues(), harness.widget.Record())
			require.Empty(subTestingT, harness.jar.writtenCookies())

			harness.queue.Advance(widget.ModalDelay)
			if testCase.expectModal {
				require.Equal(subTestingT, 1, harness.modals())
				return
			}
			require.Equal(subTestingT, 0, harness.modals())
		})
	}
}

func TestWidgetNetworkFailureStaysQuiet(testingT *testing.T) {
	offline := errors.New("network unreachable")
	harness := newWidgetHarness(testingT, nil)
	harness.fetcher.failure = offline
	harness.start(testingT, testResellerID)

	require.Equal(testingT, widget.StateHasIDFailure, harness.widget.State())
	require.ErrorIs(testingT, harness.widget.Failure(), widget.ErrFetch)
	require.ErrorIs(testingT, harness.widget.Failure(), offline)
	require.Equal(testingT, widget.DefaultValues(), harness.widget.Record())
	require.Equal(testingT, 1, harness.buttons())
	require.Equal(testingT, 0, harness.queue.Len())
	require.Empty(testingT, harness.jar.writtenCookies())
}

func TestWidgetIgnoresCookieWhenIDPresent(testingT *testing.T) {
	encoded, encodeErr := widget.EncodeRecord(widget.Record{"nickname": "Acme"})
	require.NoError(testingT, encodeErr)

	harness := newWidgetHarness(testingT, nil)
	harness.jar.values[widget.CookieName] = encoded
	harness.fetcher.failure = errors.New("offline")
	harness.start(testingT, testResellerID)

	require.Equal(testingT, widget.DefaultValues(), harness.widget.Record())
}

func TestDisabledWidgetRendersNothing(testingT *testing.T) {
	harness := newWidgetHarness(testingT, widget.Overrides{widget.KeyEnableButton: false})
	harness.fetcher.payload = testSuccessPayload
	harness.start(testingT, testResellerID)

	require.Equal(testingT, widget.StateIdle, harness.widget.State())
	require.Equal(testingT, 0, harness.buttons())
	require.Nil(testingT, harness.document.Head().FirstChild)
	require.Empty(testingT, harness.fetcher.requestedURLs())
	require.Equal(testingT, 0, harness.queue.Len())
}

func TestWidgetStartsOnce(testingT *testing.T) {
	harness := newWidgetHarness(testingT, nil)
	harness.start(testingT, "")
	harness.start(testingT, "")

	require.Equal(testingT, 1, harness.buttons())
	require.Equal(testingT, 1, harness.queue.Len())
}

func TestWidgetInstallsSingleStylesheetBeforeButton(testingT *testing.T) {
	harness := newWidgetHarness(testingT, widget.Overrides{widget.KeyButtonPosition: "top-left"})
	harness.start(testingT, "")

	styles := 0
	for child := harness.document.Head().FirstChild; child != nil; child = child.NextSibling {
		if child.Data == "style" {
			styles++
			require.Contains(testingT, page.TextContent(child), "top: 10px; left: 10px;")
		}
	}
	require.Equal(testingT, 1, styles)

	button := harness.document.FindByClass(widget.ClassButton)[0]
	require.Equal(testingT, "Contact Reseller", page.Attribute(button, "title"))
	require.Equal(testingT, widget.DefaultButtonHTML, page.TextContent(button))
}

func TestWidgetStopCancelsPendingModal(testingT *testing.T) {
	harness := newWidgetHarness(testingT, nil)
	harness.start(testingT, "")
	require.Equal(testingT, 1, harness.queue.Len())

	harness.widget.Stop()
	require.Equal(testingT, 0, harness.queue.Len())
	harness.queue.Advance(widget.ModalDelay)
	require.Equal(testingT, 0, harness.modals())
}

func TestWidgetStopCancelsRealTimers(testingT *testing.T) {
	document := page.Blank()
	instance := widget.New(widget.Resolve(nil), widget.Dependencies{Host: document, Cookies: newMemoryCookieJar()})
	instance.Start(context.Background(), "")
	instance.Stop()

	time.Sleep(10 * time.Millisecond)
	require.Empty(testingT, document.FindByClass(widget.ClassModal))
}

func TestModalDismissal(testingT *testing.T) {
	harness := newWidgetHarness(testingT, nil)
	harness.start(testingT, "")
	harness.widget.Stop()

	overlay := harness.widget.OpenModal()
	require.True(testingT, harness.document.Contains(overlay))

	content := harness.document.FindByClass(widget.ClassModalContent)[0]
	harness.document.Click(content)
	require.True(testingT, harness.document.Contains(overlay), "clicks inside the dialog keep it open")

	harness.document.Click(overlay)
	require.False(testingT, harness.document.Contains(overlay))

	second := harness.widget.OpenModal()
	closeControl := harness.document.FindByClass(widget.ClassClose)[0]
	harness.document.Click(closeControl)
	require.False(testingT, harness.document.Contains(second))
	require.Equal(testingT, 1, harness.buttons())
}

func TestEveryCloseControlDismisses(testingT *testing.T) {
	harness := newWidgetHarness(testingT, widget.Overrides{
		widget.KeyModalHTML: `<p>{NICKNAME}</p><button class="trc-close">x</button><a class="trc-close">close</a>`,
	})
	harness.start(testingT, "")
	harness.widget.Stop()

	for index := 0; index < 2; index++ {
		overlay := harness.widget.OpenModal()
		closeControls := harness.document.FindByClass(widget.ClassClose)
		require.Len(testingT, closeControls, 2)
		harness.document.Click(closeControls[index])
		require.False(testingT, harness.document.Contains(overlay))
	}
}

func TestButtonClickOpensAnotherModalEachTime(testingT *testing.T) {
	harness := newWidgetHarness(testingT, nil)
	harness.start(testingT, "")
	harness.widget.Stop()

	button := harness.document.FindByClass(widget.ClassButton)[0]
	harness.document.Click(button)
	harness.document.Click(button)
	require.Equal(testingT, 2, harness.modals())
}

func TestResellerIDFromURL(testingT *testing.T) {
	testCases := []struct {
		rawURL   string
		expected string
	}{
		{rawURL: "https://shop.test/?id=42", expected: "42"},
		{rawURL: "https://shop.test/page?foo=bar&id=%20abc%20", expected: "abc"},
		{rawURL: "https://shop.test/?id=", expected: ""},
		{rawURL: "https://shop.test/", expected: ""},
	}
	for _, testCase := range testCases {
		pageURL, parseErr := url.Parse(testCase.rawURL)
		require.NoError(testingT, parseErr)
		require.Equal(testingT, testCase.expected, widget.ResellerIDFromURL(pageURL))
	}
	require.Equal(testingT, "", widget.ResellerIDFromURL(nil))
}

func TestStateNames(testingT *testing.T) {
	require.Equal(testingT, "has_id_pending", widget.StateHasIDPending.String())
	require.False(testingT, widget.StateHasIDPending.Settled())
	require.False(testingT, widget.StateIdle.Settled())
	require.True(testingT, widget.StateNoIDValidCache.Settled())
	require.Equal(testingT, "unknown", widget.State(99).String())
}
