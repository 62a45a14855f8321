package front

import (
	"io/fs"
	"net/http"
	"strings"
)

// StaticFS serves fsys at the given URL prefix, e.g. an embed.FS with
// stylesheets. Directory listings are not served.
func (v *App) StaticFS(prefix string, fsys fs.FS) {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	fileServer := http.StripPrefix(prefix, http.FileServerFS(fsys))
	v.mux.Handle("GET "+prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	}))
}
