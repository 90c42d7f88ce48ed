package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Severity Severity
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Project and Build Errors (E100-E109)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Config file not readable",
		Detail:   "The project file exists but could not be read.",
	},
	"E101": {
		Category: CategoryBuild,
		Message:  "Missing source artifact",
		Detail:   "A copy rule or entry points at a path that does not exist. The pack directory was left untouched.",
	},
	"E102": {
		Category: CategoryBuild,
		Message:  "Bundle failed",
		Detail:   "esbuild reported errors while bundling the entry script.",
	},
	"E103": {
		Category: CategoryBuild,
		Message:  "Copy failed",
		Detail:   "A file could not be copied into the staging directory.",
	},
	"E104": {
		Category: CategoryBuild,
		Message:  "Pack directory swap failed",
		Detail:   "The staged build could not be moved into the pack directory.",
	},

	// ============================================
	// Dev Server Errors (E110-E119)
	// ============================================

	"E110": {
		Category: CategoryDev,
		Message:  "Port already in use",
		Detail:   "Another process is listening on the dev server address.",
	},
	"E111": {
		Category: CategoryDev,
		Severity: SeverityWarning,
		Message:  "Watch path removed",
		Detail:   "A watched directory disappeared. Watching resumes when it is recreated.",
	},
	"E112": {
		Category: CategoryDev,
		Message:  "Dev server failed",
		Detail:   "The HTTP listener stopped unexpectedly.",
	},

	// ============================================
	// Config Errors (E120-E129)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The project file could not be parsed.",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration field has a value outside its allowed range.",
	},

	// ============================================
	// Publish Errors (E130-E139)
	// ============================================

	"E130": {
		Category: CategoryPublish,
		Message:  "Publish failed",
		Detail:   "Uploading the pack directory did not complete.",
	},
	"E131": {
		Category: CategoryPublish,
		Message:  "No publish target",
		Detail:   "No bucket is configured for publishing.",
	},

	// ============================================
	// CLI Errors (E140-E149)
	// ============================================

	"E140": {
		Category: CategoryCLI,
		Message:  "Unknown template",
		Detail:   "The requested project template does not exist.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
