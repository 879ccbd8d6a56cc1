package resolver

import "strings"

// nodeBuiltinModules lists the top-level Node.js core modules that may be
// imported without the node: prefix.
var nodeBuiltinModules = map[string]bool{
	"assert":              true,
	"async_hooks":         true,
	"buffer":              true,
	"child_process":       true,
	"cluster":             true,
	"console":             true,
	"constants":           true,
	"crypto":              true,
	"dgram":               true,
	"diagnostics_channel": true,
	"dns":                 true,
	"domain":              true,
	"events":              true,
	"fs":                  true,
	"http":                true,
	"http2":               true,
	"https":               true,
	"inspector":           true,
	"module":              true,
	"net":                 true,
	"os":                  true,
	"path":                true,
	"perf_hooks":          true,
	"process":             true,
	"punycode":            true,
	"querystring":         true,
	"readline":            true,
	"repl":                true,
	"stream":              true,
	"string_decoder":      true,
	"sys":                 true,
	"timers":              true,
	"tls":                 true,
	"trace_events":        true,
	"tty":                 true,
	"url":                 true,
	"util":                true,
	"v8":                  true,
	"vm":                  true,
	"wasi":                true,
	"worker_threads":      true,
	"zlib":                true,
}

// builtinName reports whether specifier names a core module, either with the
// node: prefix or as a bare name such as "fs" or "fs/promises". It returns
// the name without the prefix.
func builtinName(specifier string) (string, bool) {
	if name, ok := strings.CutPrefix(specifier, "node:"); ok {
		return name, name != ""
	}

	base, _, _ := strings.Cut(specifier, "/")
	if nodeBuiltinModules[base] {
		return specifier, true
	}
	return "", false
}
