package router

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gofiber/template/html/v3"

	"carsync/internal/models"
)

// Diagnostic headers added to responses the worker produced itself.
const (
	HeaderServedBy  = "X-Served-By"
	HeaderCacheDate = "X-Cache-Date"

	ServedByCache   = "service-worker-cache"
	ServedByOffline = "service-worker-offline"
)

// Family groups API endpoints that share an offline response shape.
type Family int

// Endpoint families.
const (
	FamilyGeneric Family = iota
	FamilyAnalytics
	FamilyCharts
	FamilyListings
)

func (f Family) String() string {
	switch f {
	case FamilyAnalytics:
		return "analytics"
	case FamilyCharts:
		return "charts"
	case FamilyListings:
		return "listings"
	default:
		return "generic"
	}
}

// FamilyFor resolves the endpoint family of an API path. Analytics wins over
// charts, which wins over listings.
func FamilyFor(path string) Family {
	switch {
	case strings.Contains(path, "/analytics"):
		return FamilyAnalytics
	case strings.Contains(path, "/charts"):
		return FamilyCharts
	case strings.Contains(path, "/cars"):
		return FamilyListings
	default:
		return FamilyGeneric
	}
}

// OfflineBody returns the empty payload the dashboard renders when an
// endpoint of the family is unreachable and uncached.
func OfflineBody(f Family) any {
	switch f {
	case FamilyAnalytics:
		return models.AnalyticsSummary{Offline: true}
	case FamilyCharts:
		return models.PriceTrendChart{
			Dates:     []string{},
			Overall:   []float64{},
			ByMileage: models.MileageSeries{Low: []float64{}, Medium: []float64{}, High: []float64{}},
			Offline:   true,
		}
	case FamilyListings:
		return []any{}
	default:
		return models.OfflineMarker{Offline: true, Message: "Data not available offline"}
	}
}

func offlineAPIResponse(path string) *Response {
	body, err := json.Marshal(OfflineBody(FamilyFor(path)))
	if err != nil {
		body = []byte(`{"offline":true}`)
	}
	return &Response{
		Status:     http.StatusOK,
		StatusText: http.StatusText(http.StatusOK),
		Header: http.Header{
			"Content-Type": []string{"application/json"},
			HeaderServedBy: []string{ServedByOffline},
		},
		Body: body,
	}
}

func offlineStaticResponse() *Response {
	return &Response{
		Status:     http.StatusServiceUnavailable,
		StatusText: http.StatusText(http.StatusServiceUnavailable),
		Header: http.Header{
			"Content-Type": []string{"text/plain"},
			HeaderServedBy: []string{ServedByOffline},
		},
		Body: []byte("Offline - Resource not available"),
	}
}

func offlinePageResponse(page []byte) *Response {
	return &Response{
		Status:     http.StatusOK,
		StatusText: http.StatusText(http.StatusOK),
		Header: http.Header{
			"Content-Type": []string{"text/html; charset=utf-8"},
			HeaderServedBy: []string{ServedByOffline},
		},
		Body: append([]byte(nil), page...),
	}
}

//go:embed views/*.html
var viewsFS embed.FS

// renderOfflinePage renders the self-contained offline document once at
// startup.
func renderOfflinePage(title string) ([]byte, error) {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load offline template: %w", err)
	}

	var buf bytes.Buffer
	err = engine.Render(&buf, "offline", map[string]any{
		"Title":   title,
		"Message": "Sei attualmente offline. Alcuni dati potrebbero non essere aggiornati.",
		"Retry":   "Riprova",
	})
	if err != nil {
		return nil, fmt.Errorf("render offline page: %w", err)
	}
	return buf.Bytes(), nil
}
