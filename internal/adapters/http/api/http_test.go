package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/scoreline/internal/adapters/http/api"
	"github.com/okian/scoreline/internal/adapters/repository"
	"github.com/okian/scoreline/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	matches []types.MatchView
	err     error
}

func (m *mockDeps) Matches(context.Context) []types.MatchView { return m.matches }

func (m *mockDeps) Match(_ context.Context, id string) (types.MatchView, error) {
	if m.err != nil {
		return types.MatchView{}, m.err
	}
	for _, v := range m.matches {
		if v.MatchID == id {
			return v, nil
		}
	}
	return types.MatchView{}, fmt.Errorf("match %s: %w", id, repository.ErrNotFound)
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "tracked_matches": 2}
}

func newTestServer(deps *mockDeps, opts ...api.Option) *httptest.Server {
	srv := api.NewServer(deps, mockStats{}, opts...)
	return httptest.NewServer(srv.Handler(context.Background()))
}

func get(url string, header ...string) (*http.Response, string) {
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	So(err, ShouldBeNil)
	return resp, string(body)
}

func TestOpsAPI(t *testing.T) {
	Convey("Given an ops API with two tracked matches", t, func() {
		deps := &mockDeps{matches: []types.MatchView{
			{MatchID: "1", Competition: "epl", HomeName: "Arsenal", AwayName: "Chelsea", HomeScore: 1, Status: "live"},
			{MatchID: "2", Competition: "laliga", HomeName: "Sevilla", AwayName: "Betis", Status: "ended"},
		}}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When GET /healthz is called", func() {
			resp, body := get(ts.URL + "/healthz")

			Convey("Then it reports ok", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body, ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When a scraper calls /healthz", func() {
			resp, body := get(ts.URL+"/healthz", "Accept", "text/plain")

			Convey("Then it gets the metrics page", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body, ShouldContainSubstring, "scoreline_")
			})
		})

		Convey("When GET /metrics is called", func() {
			resp, body := get(ts.URL + "/metrics")

			Convey("Then the custom registry is exposed", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body, ShouldContainSubstring, "scoreline_reconciler_")
			})
		})

		Convey("When GET /stats is called", func() {
			resp, body := get(ts.URL + "/stats")

			Convey("Then service stats are returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var stats map[string]interface{}
				So(json.Unmarshal([]byte(body), &stats), ShouldBeNil)
				So(stats["started"], ShouldEqual, true)
			})
		})

		Convey("When GET /matches is called", func() {
			resp, body := get(ts.URL + "/matches")

			Convey("Then every tracked match is listed", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var out struct {
					Count   int               `json:"count"`
					Matches []types.MatchView `json:"matches"`
				}
				So(json.Unmarshal([]byte(body), &out), ShouldBeNil)
				So(out.Count, ShouldEqual, 2)
				So(out.Matches[0].HomeName, ShouldEqual, "Arsenal")
			})
		})

		Convey("When GET /matches is filtered by status", func() {
			_, body := get(ts.URL + "/matches?status=Ended")
			So(body, ShouldContainSubstring, `"count":1`)
			So(body, ShouldContainSubstring, "Sevilla")
		})

		Convey("When GET /matches is filtered by an unknown status", func() {
			resp, body := get(ts.URL + "/matches?status=postponed")
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(body, ShouldContainSubstring, `"code":"bad_request"`)
		})

		Convey("When GET /matches/{id} is called for a tracked match", func() {
			resp, body := get(ts.URL + "/matches/1")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, `"match_id":"1"`)
		})

		Convey("When GET /matches/{id} is called for an unknown match", func() {
			resp, body := get(ts.URL + "/matches/99")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			So(body, ShouldContainSubstring, `"code":"not_found"`)
		})

		Convey("When the lookup fails unexpectedly", func() {
			deps.err = fmt.Errorf("boom")
			resp, _ := get(ts.URL + "/matches/1")
			So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When an unknown path is requested", func() {
			resp, _ := get(ts.URL + "/leaderboard")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When a cross-origin request arrives", func() {
			resp, _ := get(ts.URL+"/matches", "Origin", "http://dashboard.local")
			So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})
	})

	Convey("Given an ops API with a stream handler", t, func() {
		stream := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
		ts := newTestServer(&mockDeps{}, api.WithStream(stream), api.WithAllowedOrigins("http://ops.local"))
		defer ts.Close()

		Convey("Then /ws is routed to it", func() {
			resp, _ := get(ts.URL + "/ws")
			So(resp.StatusCode, ShouldEqual, http.StatusTeapot)
		})

		Convey("Then only configured origins are allowed", func() {
			resp, _ := get(ts.URL+"/matches", "Origin", "http://evil.local")
			So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
			resp, _ = get(ts.URL+"/matches", "Origin", "http://ops.local")
			So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldEqual, "http://ops.local")
		})

		Convey("Then an empty match list is still an array", func() {
			_, body := get(ts.URL + "/matches")
			So(body, ShouldContainSubstring, `"matches":[]`)
		})
	})
}
