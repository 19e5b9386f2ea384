package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	contentTypeJavaScript    = "application/javascript; charset=utf-8"
	widgetScriptCacheControl = "public, max-age=300"
)

type PublicJavaScriptHandlers struct {
	logger *zap.Logger
}

func NewPublicJavaScriptHandlers(logger *zap.Logger) *PublicJavaScriptHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicJavaScriptHandlers{logger: logger}
}

func (handlers *PublicJavaScriptHandlers) WidgetJS(context *gin.Context) {
	script, renderErr := renderWidgetTemplate()
	if renderErr != nil {
		handlers.logger.Warn("render_widget_script", zap.Error(renderErr))
		context.String(http.StatusInternalServerError, "/* render error */")
		return
	}
	context.Header(headerCacheControl, widgetScriptCacheControl)
	context.Data(http.StatusOK, contentTypeJavaScript, []byte(script))
}
