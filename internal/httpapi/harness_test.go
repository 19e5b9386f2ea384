package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/httpapi"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/jsontree"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/model"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/storage"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/testutil"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/widget"
)

const (
	authorizationHeaderName = "Authorization"
	bearerTokenPrefix       = "Bearer "
	testAdminBearerToken    = "admin-secret"
	testLookupEndpoint      = "http://resellers.test/api/v1/reseller/"
	testLookupWait          = 2 * time.Second

	lookupRoutePath  = "/api/v1/reseller/:id"
	adminRoutePath   = "/api/admin/resellers"
	widgetConfigPath = "/api/widget-config"
	widgetScriptPath = "/widget.js"
)

var seededResellers = []model.Reseller{
	{ID: 42, Nickname: "Bob", BillingPhone: "<b>0911</b>  222\n333", URL: "https://bob.test"},
	{ID: 7, Nickname: "Alice", BillingPhone: "0900 000 000", URL: "https://alice.test"},
}

type apiHarness struct {
	router   *gin.Engine
	database *gorm.DB
	injector *httpapi.WidgetInjector
	fetcher  *routerFetcher
}

// routerFetcher answers widget lookups from the harness router without opening sockets.
type routerFetcher struct {
	router   http.Handler
	requests []string
}

func (fetcher *routerFetcher) Fetch(ctx context.Context, requestURL string) (jsontree.Value, error) {
	fetcher.requests = append(fetcher.requests, requestURL)
	parsedURL, parseErr := url.Parse(requestURL)
	if parseErr != nil {
		return jsontree.Value{}, parseErr
	}
	request := httptest.NewRequest(http.MethodGet, parsedURL.RequestURI(), nil).WithContext(ctx)
	recorder := httptest.NewRecorder()
	fetcher.router.ServeHTTP(recorder, request)
	return jsontree.Parse(recorder.Body.Bytes())
}

func buildAPIHarness(testingT *testing.T, overrides widget.Overrides) apiHarness {
	testingT.Helper()

	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	database := testutil.OpenResellerDatabase(testingT, seededResellers...)
	repository := storage.NewResellerRepository(database)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))

	mergedOverrides := widget.Overrides{widget.KeyEndpoint: testLookupEndpoint}
	for key, value := range overrides {
		mergedOverrides[key] = value
	}
	fetcher := &routerFetcher{router: router}
	injector := httpapi.NewWidgetInjector(widget.Resolve(mergedOverrides), fetcher, logger, "", testLookupWait)

	publicCORS := cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodOptions},
	})
	lookupHandlers := httpapi.NewResellerLookupHandlers(repository, logger)
	scriptHandlers := httpapi.NewPublicJavaScriptHandlers(logger)
	router.GET(lookupRoutePath, publicCORS, lookupHandlers.GetReseller)
	router.GET(widgetScriptPath, publicCORS, scriptHandlers.WidgetJS)

	pageHandlers := httpapi.NewWidgetPageHandlers(injector, logger, []string{"42", " ", "7"})
	router.GET(widgetConfigPath, pageHandlers.WidgetConfig)
	router.GET(httpapi.DemoPagePath, pageHandlers.RenderDemo)

	adminHandlers := httpapi.NewResellerAdminHandlers(repository, logger)
	adminGroup := router.Group(adminRoutePath, httpapi.AdminAuthMiddleware(testAdminBearerToken), httpapi.NoCacheHeaders())
	adminGroup.GET("", adminHandlers.ListResellers)
	adminGroup.PUT("/:id", adminHandlers.SaveReseller)
	adminGroup.DELETE("/:id", adminHandlers.DeleteReseller)

	return apiHarness{router: router, database: database, injector: injector, fetcher: fetcher}
}

func performJSONRequest(testingT *testing.T, router http.Handler, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	testingT.Helper()
	var requestBody io.Reader
	if body != nil {
		encoded, encodeErr := json.Marshal(body)
		require.NoError(testingT, encodeErr)
		requestBody = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, requestBody)
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func adminHeaders() map[string]string {
	return map[string]string{authorizationHeaderName: bearerTokenPrefix + testAdminBearerToken}
}

func decodeJSONBody(testingT *testing.T, recorder *httptest.ResponseRecorder, destination any) {
	testingT.Helper()
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), destination))
}
