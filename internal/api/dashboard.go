package api

import (
	"context"
	_ "embed"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kingabzpro/ECom-Intel/internal/review"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardHTML))

type dashboardData struct {
	Products []review.ProductSummary
}

// dashboard handles GET /, rendering the product history page with a form
// that submits new analysis requests to the JSON API.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	products, err := s.store.RecentProducts(ctx, defaultProductLimit)
	if err != nil {
		s.logger.Error("dashboard history load failed", zap.Error(err))
		http.Error(w, "failed to load product history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, dashboardData{Products: products}); err != nil {
		s.logger.Error("dashboard render failed", zap.Error(err))
	}
}
