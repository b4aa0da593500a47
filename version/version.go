// version/version.go
package version

import (
	"net/http"
	"runtime"

	"github.com/dalemusser/usergrid/httputil"
	"github.com/go-chi/chi/v5"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/dalemusser/usergrid/version.Version=1.0.0 \
//	                   -X github.com/dalemusser/usergrid/version.Commit=abc123"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// Get returns the build info of this binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String is the one-line form printed by the CLIs.
func (i Info) String() string {
	return i.Version + " (" + i.Commit + ", built " + i.BuildTime + ", " + i.GoVersion + " " + i.OS + "/" + i.Arch + ")"
}

// Mount attaches GET /version to r.
func Mount(r chi.Router) {
	info := Get()
	r.Method(http.MethodGet, "/version", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, info)
	}))
}
