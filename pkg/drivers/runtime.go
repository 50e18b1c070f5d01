package drivers

// Runtime names under which the built-in drivers register.
const (
	RuntimeCallable = "callable"
	RuntimeHTTP     = "http"
	RuntimeMCP      = "mcp"
)
