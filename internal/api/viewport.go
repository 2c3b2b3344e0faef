package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// Client hint headers carrying the layout viewport width.
var viewportHeaders = []string{"Sec-CH-Viewport-Width", "Viewport-Width"}

// viewportWidth resolves the width a page is adjusted for. An explicit
// ?width= must be valid; malformed hint headers are ignored.
func viewportWidth(r *http.Request, fallback int) (int, error) {
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid width %q", v)
		}
		return n, nil
	}
	for _, h := range viewportHeaders {
		v := strings.TrimSpace(r.Header.Get(h))
		if v == "" {
			continue
		}
		// Hints may be fractional CSS pixels.
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || f < 0 {
			continue
		}
		return int(math.Min(f, math.MaxInt32)), nil
	}
	return fallback, nil
}

// advertiseViewportHints asks browsers to send width hints on later requests.
func advertiseViewportHints(w http.ResponseWriter) {
	w.Header().Set("Accept-CH", strings.Join(viewportHeaders, ", "))
	w.Header().Add("Vary", strings.Join(viewportHeaders, ", "))
}
