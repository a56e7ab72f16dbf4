package console

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/johnwards/dealerhub/internal/metrics"
	"github.com/johnwards/dealerhub/internal/view"
)

// Options configures the console endpoints.
type Options struct {
	AlertTTL time.Duration
	PageSize int
	Metrics  *metrics.Collector
	Logger   *slog.Logger
	Now      func() time.Time
}

// RegisterRoutes adds the console endpoints to the given mux. Screens read
// and write records through src.
func RegisterRoutes(mux *http.ServeMux, sessions *Sessions, src view.Source, opts Options) {
	h := &Handler{
		sessions: sessions,
		metrics:  opts.Metrics,
		newScreen: func(cfg *view.Config) *view.Screen {
			return view.NewScreen(cfg, src, view.Options{
				AlertTTL: opts.AlertTTL,
				PageSize: opts.PageSize,
				Now:      opts.Now,
				Logger:   opts.Logger,
			})
		},
	}

	mux.HandleFunc("GET /console/screens", h.Screens)
	mux.HandleFunc("GET /console/{screen}", h.View)
	mux.HandleFunc("POST /console/{screen}/refresh", h.Refresh)
	mux.HandleFunc("GET /console/{screen}/export", h.Export)
	mux.HandleFunc("POST /console/{screen}/modal", h.OpenModal)
	mux.HandleFunc("DELETE /console/{screen}/modal", h.CloseModal)
	mux.HandleFunc("POST /console/{screen}/modal/submit", h.Submit)
	mux.HandleFunc("POST /console/{screen}/modal/confirm", h.Confirm)
	mux.HandleFunc("DELETE /console/{screen}/alert", h.DismissAlert)
	mux.HandleFunc("POST /console/{screen}/records/{id}/actions/{action}", h.RunAction)
}
