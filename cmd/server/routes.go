package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/httpapi"
)

const (
	publicRouteLookup       = "/api/v1/reseller/:id"
	publicRouteWidget       = "/widget.js"
	publicRouteWidgetConfig = "/api/widget-config"
	adminRoutePrefix        = "/api/admin"
	adminRouteResellers     = "/resellers"
	adminRouteReseller      = "/resellers/:id"
	corsOriginWildcard      = "*"
	corsHeaderAuthorization = "Authorization"
	corsHeaderContentType   = "Content-Type"
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodOptions}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType}
)

func newPublicCORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{corsOriginWildcard},
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

func registerPublicRoutes(
	router *gin.Engine,
	lookupHandlers *httpapi.ResellerLookupHandlers,
	publicJavaScriptHandlers *httpapi.PublicJavaScriptHandlers,
	widgetPageHandlers *httpapi.WidgetPageHandlers,
) {
	publicGroup := router.Group("/")
	publicGroup.Use(newPublicCORS())
	publicGroup.GET(publicRouteLookup, lookupHandlers.GetReseller)
	publicGroup.OPTIONS(publicRouteLookup)
	publicGroup.GET(publicRouteWidget, publicJavaScriptHandlers.WidgetJS)
	publicGroup.GET(publicRouteWidgetConfig, widgetPageHandlers.WidgetConfig)

	router.GET(httpapi.DemoPagePath, widgetPageHandlers.RenderDemo)
}

func registerAdminRoutes(router *gin.Engine, adminHandlers *httpapi.ResellerAdminHandlers, adminBearerToken string) {
	adminGroup := router.Group(adminRoutePrefix)
	adminGroup.Use(httpapi.AdminAuthMiddleware(adminBearerToken), httpapi.NoCacheHeaders())
	adminGroup.GET(adminRouteResellers, adminHandlers.ListResellers)
	adminGroup.PUT(adminRouteReseller, adminHandlers.SaveReseller)
	adminGroup.DELETE(adminRouteReseller, adminHandlers.DeleteReseller)
}

// registerProxyRoute sends every unmatched route to the host site.
func registerProxyRoute(router *gin.Engine, proxy http.Handler) {
	router.NoRoute(gin.WrapH(proxy))
}
