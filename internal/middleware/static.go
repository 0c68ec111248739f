package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const listingPlaceholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f4f1ea"/><path d="M60 70h80l10 20v50H50V90z" fill="none" stroke="#a08f6b" stroke-width="6"/><path d="M50 90h100" stroke="#a08f6b" stroke-width="6"/><text x="100" y="175" text-anchor="middle" font-family="Arial" font-size="14" fill="#7a6a4c">NO IMAGE</text></svg>`

// ListingImageServer serves uploaded listing images from dir. Missing files
// get a placeholder so broken image links still render.
func ListingImageServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(listingPlaceholderSVG))
	})
}
