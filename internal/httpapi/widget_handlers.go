package httpapi

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/widget"
	"github.com/MarkoPoloResearchLab/reseller_cta/pkg/footer"
)

const (
	// DemoPagePath serves a sample page with the widget injected.
	DemoPagePath = "/demo"

	contentTypeHTML = "text/html; charset=utf-8"

	demoPageTitle       = "Reseller CTA demo"
	demoHeading         = "Reseller CTA demo"
	demoMessage         = "Open this page with ?id=<reseller> to load a reseller, or without it to see the fallback contacts."
	demoFooterElementID = "demo-footer"
	demoFooterClass     = "demo-footer"
	demoFooterLinkClass = "demo-footer-link"
	demoFooterPrefix    = "Try:"
	demoLinkNoReseller  = "Without reseller"
	demoLinkReseller    = "Reseller "
)

// WidgetPageHandlers expose the widget configuration and the demo page.
type WidgetPageHandlers struct {
	injector        *WidgetInjector
	logger          *zap.Logger
	demoResellerIDs []string
}

func NewWidgetPageHandlers(injector *WidgetInjector, logger *zap.Logger, demoResellerIDs []string) *WidgetPageHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizedIDs := make([]string, 0, len(demoResellerIDs))
	for _, resellerID := range demoResellerIDs {
		if trimmed := strings.TrimSpace(resellerID); trimmed != "" {
			normalizedIDs = append(normalizedIDs, trimmed)
		}
	}
	return &WidgetPageHandlers{injector: injector, logger: logger, demoResellerIDs: normalizedIDs}
}

// WidgetConfig reports the resolved widget configuration.
func (handlers *WidgetPageHandlers) WidgetConfig(context *gin.Context) {
	context.JSON(http.StatusOK, handlers.injector.Config())
}

func (handlers *WidgetPageHandlers) RenderDemo(context *gin.Context) {
	footerHTML, footerErr := footer.Render(footer.Config{
		ElementID:  demoFooterElementID,
		BaseClass:  demoFooterClass,
		LinkClass:  demoFooterLinkClass,
		PrefixText: demoFooterPrefix,
		Links:      handlers.demoLinks(),
	})
	if footerErr != nil {
		handlers.logger.Warn("render_demo_footer", zap.Error(footerErr))
		context.String(http.StatusInternalServerError, "render error")
		return
	}

	var buffer bytes.Buffer
	if err := demoTemplate.Execute(&buffer, demoTemplateData{
		PageTitle:  demoPageTitle,
		Heading:    demoHeading,
		Message:    demoMessage,
		ResellerID: widget.ResellerIDFromURL(context.Request.URL),
		FooterHTML: footerHTML,
	}); err != nil {
		handlers.logger.Warn("render_demo_page", zap.Error(err))
		context.String(http.StatusInternalServerError, "render error")
		return
	}

	injection, injectErr := handlers.injector.Inject(context.Request.Context(), context.Request, buffer.Bytes())
	if injectErr != nil {
		handlers.logger.Warn("inject_demo_page", zap.Error(injectErr))
		context.String(http.StatusInternalServerError, "render error")
		return
	}

	setNoCacheHeaders(context.Writer.Header())
	for _, cookie := range injection.Cookies {
		http.SetCookie(context.Writer, cookie)
	}
	context.Data(http.StatusOK, contentTypeHTML, injection.Body)
}

func (handlers *WidgetPageHandlers) demoLinks() []footer.Link {
	links := []footer.Link{{Label: demoLinkNoReseller, URL: DemoPagePath}}
	for _, resellerID := range handlers.demoResellerIDs {
		query := url.Values{widget.ResellerQueryParameter: []string{resellerID}}
		links = append(links, footer.Link{Label: demoLinkReseller + resellerID, URL: DemoPagePath + "?" + query.Encode()})
	}
	return links
}
