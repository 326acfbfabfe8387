package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/zkpresence/internal/adapters/http/api"
	service "github.com/okian/zkpresence/internal/app"
	"github.com/okian/zkpresence/internal/domain/model"
	"github.com/okian/zkpresence/internal/presentation"
)

// Mock implementations for testing
type mockScorer struct {
	mu      sync.Mutex
	result  model.PresenceResult
	err     error
	lastRaw string
	calls   int
}

func (m *mockScorer) Score(ctx context.Context, raw string) (model.PresenceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastRaw = raw
	if m.err != nil {
		return model.PresenceResult{}, m.err
	}
	if strings.TrimSpace(raw) == "" {
		return model.PresenceResult{}, service.ErrEmptyUsername
	}
	return m.result, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats(ctx context.Context) map[string]interface{} {
	return m.stats
}

var aliceResult = model.PresenceResult{
	PFP:           "https://img/alice.png",
	Username:      "alice",
	Consistency:   100,
	Effectiveness: 67,
	UnionMaxi:     80,
	Score:         82,
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Handler(t *testing.T) {
	Convey("Given a new API server", t, func() {
		scorer := &mockScorer{result: aliceResult}
		stats := &mockStatsProvider{stats: map[string]interface{}{"started": true}}
		handler := api.NewServer(scorer, stats).Handler()

		Convey("Then the health endpoint serves metrics", func() {
			w := serve(handler, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint is accessible", func() {
			w := serve(handler, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the web card and API reference are mounted", func() {
			So(serve(handler, "/").Code, ShouldEqual, http.StatusOK)
			So(serve(handler, "/openapi.yaml").Code, ShouldEqual, http.StatusOK)
			So(serve(handler, "/api-docs").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then unknown paths return 404", func() {
			w := serve(handler, "/unknown")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then non-GET presence requests are rejected", func() {
			req := httptest.NewRequest(http.MethodPost, "/presence/alice", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then a request ID header does not break routing", func() {
			req := httptest.NewRequest(http.MethodGet, "/presence/alice", nil)
			req.Header.Set("X-Request-Id", "req-1")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestPresenceHandler_HandleGetPresence(t *testing.T) {
	Convey("Given a presence route", t, func() {
		scorer := &mockScorer{result: aliceResult}
		handler := api.NewServer(scorer, &mockStatsProvider{}).Handler()

		Convey("When the user is scored", func() {
			w := serve(handler, "/presence/alice")

			Convey("Then the result is returned as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")

				var got model.PresenceResult
				So(json.NewDecoder(w.Body).Decode(&got), ShouldBeNil)
				So(got, ShouldResemble, aliceResult)
			})

			Convey("Then the wire field names are stable", func() {
				body := w.Body.String()
				for _, field := range []string{`"pfp"`, `"username"`, `"consistency"`, `"effectiveness"`, `"unionmaxi"`, `"score"`} {
					So(body, ShouldContainSubstring, field)
				}
			})
		})

		Convey("When the path segment is percent-encoded", func() {
			w := serve(handler, "/presence/%40alice")

			Convey("Then the decoded handle reaches the scorer", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(scorer.lastRaw, ShouldEqual, "@alice")
			})
		})

		Convey("When the decoded segment still contains percent signs", func() {
			w := serve(handler, "/presence/a%2541")

			Convey("Then it is decoded exactly once", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(scorer.lastRaw, ShouldEqual, "a%41")
			})
		})

		Convey("When the decoded segment is not a valid escape", func() {
			w := serve(handler, "/presence/a%25b")

			Convey("Then it is passed through rather than rejected", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(scorer.lastRaw, ShouldEqual, "a%b")
			})
		})

		Convey("When the username is blank", func() {
			w := serve(handler, "/presence/%20%20")

			Convey("Then it should return 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)

				var resp map[string]string
				So(json.NewDecoder(w.Body).Decode(&resp), ShouldBeNil)
				So(resp["code"], ShouldEqual, "bad_request")
				So(resp["message"], ShouldContainSubstring, "username is empty")
			})
		})

		Convey("When the service has not started", func() {
			scorer.err = service.ErrNotStarted
			w := serve(handler, "/presence/alice")

			Convey("Then it should return 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When the scorer fails unexpectedly", func() {
			scorer.err = errors.New("boom")
			w := serve(handler, "/presence/alice")

			Convey("Then it should return 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)

				var resp map[string]string
				So(json.NewDecoder(w.Body).Decode(&resp), ShouldBeNil)
				So(resp["code"], ShouldEqual, "internal_error")
				So(resp["message"], ShouldContainSubstring, "boom")
			})
		})
	})
}

func TestPresenceHandler_HandleGetShare(t *testing.T) {
	Convey("Given a share route", t, func() {
		scorer := &mockScorer{result: aliceResult}
		handler := api.NewServer(scorer, &mockStatsProvider{}).Handler()

		Convey("When requesting the share link", func() {
			w := serve(handler, "/presence/alice/share")

			Convey("Then the text and intent URL match the card", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var resp map[string]string
				So(json.NewDecoder(w.Body).Decode(&resp), ShouldBeNil)
				So(resp["text"], ShouldEqual, presentation.ShareText(aliceResult))
				So(resp["url"], ShouldEqual, presentation.IntentURL(aliceResult))
				So(resp["url"], ShouldStartWith, presentation.IntentBaseURL)
			})
		})

		Convey("When the scorer fails", func() {
			scorer.err = errors.New("boom")
			w := serve(handler, "/presence/alice/share")

			Convey("Then no share link is produced", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldNotContainSubstring, presentation.IntentBaseURL)
			})
		})
	})
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	Convey("Given a health handler", t, func() {
		handler := api.NewHealthHandler()

		Convey("When handling health check request", func() {
			req := httptest.NewRequest("GET", "/healthz", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return OK status", func() {
				handler.HandleHealth(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestStatsHandler_HandleStats(t *testing.T) {
	Convey("Given a stats handler", t, func() {
		mockStats := &mockStatsProvider{
			stats: map[string]interface{}{
				"started":       true,
				"cache_entries": 12,
			},
		}
		handler := api.NewStatsHandler(mockStats)

		Convey("When handling stats request", func() {
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return stats", func() {
				handler.HandleStats(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)

				var response map[string]interface{}
				err := json.NewDecoder(w.Body).Decode(&response)
				So(err, ShouldBeNil)
				So(response["started"], ShouldEqual, true)
				So(response["cache_entries"], ShouldEqual, 12)
			})
		})
	})
}
