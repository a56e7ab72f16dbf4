package ui

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/johnwards/dealerhub/web"
)

// RegisterRoutes registers the console UI at /_ui/.
func RegisterRoutes(mux *http.ServeMux) {
	distFS, err := fs.Sub(web.DistFS, "dist")
	if err != nil {
		panic("failed to create sub filesystem: " + err.Error())
	}

	fileServer := http.StripPrefix("/_ui/", http.FileServer(http.FS(distFS)))

	mux.HandleFunc("GET /_ui/", func(w http.ResponseWriter, r *http.Request) {
		if path := strings.TrimPrefix(r.URL.Path, "/_ui/"); path != "" && path != "index.html" {
			if f, err := distFS.Open(path); err == nil {
				_ = f.Close()
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		// Unknown paths get the single page, which routes on the hash.
		index, err := fs.ReadFile(distFS, "index.html")
		if err != nil {
			http.Error(w, "index.html not found", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(index)
	})
}
