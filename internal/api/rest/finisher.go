package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Media types by format token. XML was never served natively: it keeps
// the vendored JSON media type and a JSON body.
var responseTypes = map[string]string{
	"json": "application/vnd.PHE-COVID19.v1+json; charset=utf-8",
	"xml":  "application/vnd.PHE-COVID19.v1+json; charset=utf-8",
	"csv":  "text/csv; charset=utf-8",
}

const serverLocationNotAvailable = "N/A"

// finisher stamps the response headers and compresses every body.
type finisher struct {
	serverLocation string
}

func newFinisher(serverLocation string) *finisher {
	if serverLocation == "" {
		serverLocation = serverLocationNotAvailable
	}
	return &finisher{serverLocation: serverLocation}
}

// stampUniversal sets the headers carried by every response, success or
// failure.
func (f *finisher) stampUniversal(h http.Header, format string) {
	h.Set("Content-Type", responseTypes[format])
	h.Set("Content-Encoding", "gzip")
	h.Set("Server", "PHE API Service (Unix)")
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubdomains; preload")
	h.Set("X-Frame-Options", "deny")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Xss-Protection", "1; mode=block")
	h.Set("Referrer-Policy", "origin-when-cross-origin, strict-origin-when-cross-origin")
	h.Set("Content-Security-Policy", "default-src 'none'; style-src 'self' 'unsafe-inline'")
	h.Set("X-Phe-Media-Type", "PHE-COVID19.v1")
	h.Set("Phe-Server-Loc", f.serverLocation)
}

// stampSuccess adds the cache and freshness headers of a 2xx response.
func (f *finisher) stampSuccess(h http.Header, rawQuery string, release time.Time) {
	h.Set("Cache-Control", "public, max-age=90")
	h.Set("Content-Location", "/v1/data?"+rawQuery)
	h.Set("Last-Modified", release.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
}

// stampCSV marks the body as a file download, named after the release day.
func (f *finisher) stampCSV(h http.Header, release time.Time) {
	h.Set("Content-Disposition", fmt.Sprintf(
		`attachment; filename="data_%s.csv"`, release.UTC().Format("2006-Jan-02")))
}

// write compresses and sends the body. Bodiless statuses and HEAD
// requests send headers only; successful HEAD requests become 204.
func (f *finisher) write(w http.ResponseWriter, r *http.Request, status int, body []byte) error {
	if r.Method == http.MethodHead {
		if status < 400 {
			status = http.StatusNoContent
		}
		w.WriteHeader(status)
		return nil
	}

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return nil
	}

	w.WriteHeader(status)

	gz := gzip.NewWriter(w)
	if _, err := gz.Write(body); err != nil {
		return err
	}
	return gz.Close()
}
