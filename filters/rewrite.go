package filters

import (
	"strings"

	"github.com/agentgateway/agentgateway/model"
)

// RewritePath applies a PathRewrite to originalPath. Full replaces the
// whole path. Prefix replaces only the matched prefix portion with the
// rewrite's prefix, preserving the suffix -- per §9's resolved open
// question, "the matched prefix" means the literal prefix the winning
// PathMatch contributed at resolution time, not a syntactic prefix of the
// rewrite config. Grounded on the prefix-preserving-suffix join used by
// reverse proxy path rewriting (stripRoutePrefix + singleJoinSlash).
func RewritePath(matchedPrefix string, rewrite *model.PathRewrite, originalPath string) string {
	if rewrite == nil {
		return originalPath
	}
	if rewrite.Full != nil {
		return *rewrite.Full
	}
	if rewrite.Prefix != nil {
		suffix := strings.TrimPrefix(originalPath, matchedPrefix)
		return singleJoinSlash(*rewrite.Prefix, suffix)
	}
	return originalPath
}

func singleJoinSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash && b != "":
		return a + "/" + b
	default:
		return a + b
	}
}
