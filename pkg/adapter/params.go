package adapter

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/morezero/resource-fetcher/pkg/registry"
)

// ParseResourcePath splits "<resource>;k=v;k2=v2" into the resource name and its matrix
// params. path must still be percent-encoded; every part is unescaped exactly once.
// Repeated keys collect into a []string.
func ParseResourcePath(path string) (string, registry.Params, error) {
	segments := strings.Split(strings.TrimPrefix(path, "/"), ";")

	resource, err := url.PathUnescape(segments[0])
	if err != nil {
		resource = segments[0]
	}

	matrix := url.Values{}
	for _, seg := range segments[1:] {
		if seg == "" {
			continue
		}
		rawKey, rawVal, _ := strings.Cut(seg, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return "", nil, err
		}
		val, err := url.QueryUnescape(rawVal)
		if err != nil {
			return "", nil, err
		}
		matrix.Add(key, val)
	}
	params := registry.Params{}
	mergeValues(params, matrix)
	return resource, params, nil
}

// escapedWildcard returns the still-encoded request path below the /resource/ mount.
func escapedWildcard(r *http.Request) string {
	escaped := r.URL.EscapedPath()
	if i := strings.Index(escaped, resourcePrefix); i >= 0 {
		return escaped[i+len(resourcePrefix):]
	}
	return escaped
}

// mergeValues copies vals into params, replacing existing keys.
func mergeValues(params registry.Params, vals url.Values) {
	for k, v := range vals {
		if k == "" {
			continue
		}
		if len(v) == 1 {
			params[k] = v[0]
			continue
		}
		params[k] = append([]string(nil), v...)
	}
}
