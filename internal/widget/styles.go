package widget

import "strings"

const (
	buttonSelector = ".trc-float-btn"

	builtInButtonCSS = `
.trc-float-btn {
    position: fixed;
    {POSITION_STYLES}
    background: {BUTTON_COLOR};
    width: 20px;
    height: 20px;
    border-radius: 0;
    border: none;
    color: {MODAL_BACKGROUND_COLOR};
    font-size: 12px;
    cursor: pointer;
    z-index: 9999;
    box-shadow: 0 1px 3px rgba(0, 0, 0, 0.3);
    display: flex;
    align-items: center;
    justify-content: center;
    padding: 0;
    text-transform: lowercase;
}
`

	builtInModalCSS = `
.trc-modal {
    position: fixed;
    top: 0;
    left: 0;
    width: 100%;
    height: 100%;
    background: rgba(0,0,0,0.5);
    display: flex;
    justify-content: center;
    align-items: center;
    z-index: 10000;
    font-size: 85%;
}
.trc-modal-content {
    color: {BUTTON_COLOR};
    background: {MODAL_BACKGROUND_COLOR};
    padding: 30px;
    border-radius: 10px;
    text-align: center;
    max-width: 400px;
    width: 90%;
}
.trc-btn {
    display: inline-block;
    margin: 10px;
    padding: 12px 24px;
    background: {BUTTON_COLOR};
    color: {MODAL_BACKGROUND_COLOR};
    text-decoration: none;
    border-radius: 5px;
    border: none;
    cursor: pointer;
    font-weight: bold;
}
.trc-btn:hover {
    opacity: 0.8;
}
.trc-close {
    position: absolute;
    top: 10px;
    right: 15px;
    font-size: 24px;
    cursor: pointer;
}
`
)

// Stylesheet builds the single style block for the button and the modal.
func Stylesheet(config Config, record Record) string {
	return buttonStylesheet(config, record) + modalStylesheet(config, record)
}

func buttonStylesheet(config Config, record Record) string {
	if strings.TrimSpace(config.ButtonCSS) == "" {
		return Render(builtInButtonCSS, record, config)
	}
	rendered := Render(config.ButtonCSS, record, config)
	if strings.Contains(config.ButtonCSS, PlaceholderPositionStyles) {
		return rendered
	}
	return insertIntoPrimaryBlock(rendered, PositionStyle(config.Position, config.Spacing))
}

func modalStylesheet(config Config, record Record) string {
	if strings.TrimSpace(config.ModalCSS) == "" {
		return Render(builtInModalCSS, record, config)
	}
	return Render(config.ModalCSS, record, config)
}

// insertIntoPrimaryBlock places declarations at the top of the button rule, or of the first
// rule when the stylesheet never names the button selector.
func insertIntoPrimaryBlock(stylesheet string, declarations string) string {
	searchFrom := 0
	if selectorIndex := strings.Index(stylesheet, buttonSelector); selectorIndex >= 0 {
		searchFrom = selectorIndex
	}
	braceOffset := strings.Index(stylesheet[searchFrom:], "{")
	if braceOffset < 0 {
		return stylesheet + "\n" + buttonSelector + " {\n    " + declarations + "\n}\n"
	}
	insertAt := searchFrom + braceOffset + 1
	return stylesheet[:insertAt] + "\n    " + declarations + stylesheet[insertAt:]
}
