package errors

import "net/http"

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
	Status   int
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Config Errors (E100-E199)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No splitroute.json was found in the project directory.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "splitroute.json could not be parsed or contains invalid values.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid port",
		Detail:   "The web port must be between 0 and 65535.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid route table",
		Detail:   "The route table could not be built from the declared routes.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid asset source",
		Detail:   "The configured asset source is unknown or incomplete.",
	},

	// ============================================
	// Load Errors (E200-E299)
	// ============================================

	"E200": {
		Category: CategoryLoad,
		Message:  "Page module not found",
		Detail:   "The asset source does not contain the requested page module.",
		Status:   http.StatusNotFound,
	},
	"E201": {
		Category: CategoryLoad,
		Message:  "Page module failed to load",
		Detail:   "Fetching the page module returned an error.",
		Status:   http.StatusInternalServerError,
	},
	"E202": {
		Category: CategoryLoad,
		Message:  "Page module failed to parse",
		Detail:   "The fetched page module is not a valid template.",
		Status:   http.StatusInternalServerError,
	},
	"E203": {
		Category: CategoryLoad,
		Message:  "Page preload failed",
		Detail:   "The page's data preload hook returned an error.",
		Status:   http.StatusInternalServerError,
	},

	// ============================================
	// Render Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryRender,
		Message:  "Page render failed",
		Detail:   "The matched page returned an error while rendering.",
		Status:   http.StatusInternalServerError,
	},
	"E301": {
		Category: CategoryRender,
		Message:  "Store snapshot invalid",
		Detail:   "The initial state snapshot is not valid JSON.",
		Status:   http.StatusBadRequest,
	},

	// ============================================
	// Protocol Errors (E400-E499)
	// ============================================

	"E400": {
		Category: CategoryProtocol,
		Message:  "Invalid live frame",
		Detail:   "A live session frame could not be decoded.",
	},
	"E401": {
		Category: CategoryProtocol,
		Message:  "Unknown navigation action",
		Detail:   "Navigation frames must use push, replace or go.",
	},
	"E402": {
		Category: CategoryProtocol,
		Message:  "Live session queue full",
		Detail:   "The session event loop is not keeping up with incoming frames.",
	},
	"E403": {
		Category: CategoryProtocol,
		Message:  "Invalid navigation target",
		Detail:   "Navigation targets must be site-relative paths.",
	},

	// ============================================
	// HTTP Errors (E500-E599)
	// ============================================

	"E500": {
		Category: CategoryHTTP,
		Message:  "Not Found",
		Status:   http.StatusNotFound,
	},
	"E501": {
		Category: CategoryHTTP,
		Message:  "Invalid request path",
		Detail:   "The request path could not be canonicalized.",
		Status:   http.StatusBadRequest,
	},
	"E502": {
		Category: CategoryHTTP,
		Message:  "Internal server error",
		Status:   http.StatusInternalServerError,
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
