package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

const (
	maxInjectableBodyBytes = 8 << 20

	headerAcceptEncoding  = "Accept-Encoding"
	headerContentEncoding = "Content-Encoding"
	headerContentLength   = "Content-Length"
	headerContentType     = "Content-Type"
	headerSetCookie       = "Set-Cookie"

	mediaTypeHTML          = "text/html"
	acceptEncodingIdentity = "identity"

	errorMessageProxyReadBody = "proxy: read upstream body"
)

// NewInjectingProxy forwards requests to upstream and draws the widget into HTML pages it returns.
func NewInjectingProxy(upstream *url.URL, injector *WidgetInjector, logger *zap.Logger) *httputil.ReverseProxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	baseDirector := proxy.Director
	proxy.Director = func(request *http.Request) {
		baseDirector(request)
		request.Host = upstream.Host
		request.Header.Set(headerAcceptEncoding, acceptEncodingIdentity)
	}
	proxy.ModifyResponse = func(response *http.Response) error {
		if !isInjectableResponse(response) {
			return nil
		}
		return injectResponse(response, injector, logger)
	}
	proxy.ErrorHandler = func(writer http.ResponseWriter, request *http.Request, proxyErr error) {
		logger.Warn("proxy_upstream_failed", zap.String("path", request.URL.Path), zap.Error(proxyErr))
		writer.WriteHeader(http.StatusBadGateway)
	}
	return proxy
}

func isInjectableResponse(response *http.Response) bool {
	if response.Request == nil || response.Request.Method != http.MethodGet {
		return false
	}
	if response.StatusCode != http.StatusOK {
		return false
	}
	if response.Header.Get(headerContentEncoding) != "" {
		return false
	}
	mediaType, _, parseErr := mime.ParseMediaType(response.Header.Get(headerContentType))
	return parseErr == nil && mediaType == mediaTypeHTML
}

func injectResponse(response *http.Response, injector *WidgetInjector, logger *zap.Logger) error {
	upstreamBody := response.Body
	original, readErr := io.ReadAll(io.LimitReader(upstreamBody, maxInjectableBodyBytes+1))
	if readErr != nil {
		_ = upstreamBody.Close()
		return fmt.Errorf("%s: %w", errorMessageProxyReadBody, readErr)
	}
	if len(original) > maxInjectableBodyBytes {
		logger.Debug("proxy_body_too_large", zap.String("path", response.Request.URL.Path))
		response.Body = passthroughBody{Reader: io.MultiReader(bytes.NewReader(original), upstreamBody), Closer: upstreamBody}
		return nil
	}
	if closeErr := upstreamBody.Close(); closeErr != nil {
		logger.Debug("proxy_close_body", zap.Error(closeErr))
	}

	injection, injectErr := injector.Inject(response.Request.Context(), response.Request, original)
	if injectErr != nil {
		logger.Warn("proxy_inject_failed", zap.String("path", response.Request.URL.Path), zap.Error(injectErr))
		replaceBody(response, original)
		return nil
	}

	replaceBody(response, injection.Body)
	for _, cookie := range injection.Cookies {
		response.Header.Add(headerSetCookie, cookie.String())
	}
	setNoCacheHeaders(response.Header)
	return nil
}

type passthroughBody struct {
	io.Reader
	io.Closer
}

func replaceBody(response *http.Response, body []byte) {
	response.Body = io.NopCloser(bytes.NewReader(body))
	response.ContentLength = int64(len(body))
	response.Header.Set(headerContentLength, strconv.Itoa(len(body)))
}
