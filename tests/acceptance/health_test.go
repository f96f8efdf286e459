package acceptance

import (
	"net/http"
)

func (s *Suite) TestHealthEndpoint() {
	resp, err := s.Client.Get(s.BaseURL + "/health")
	s.Require().NoError(err, "Failed to make request")
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode, "Expected status 200")
}

func (s *Suite) TestMetricsEndpoint() {
	// Hit a page first so the page view counter has something to report.
	warmup, err := s.Client.Get(s.BaseURL + "/")
	s.Require().NoError(err)
	s.readBody(warmup)

	resp, err := s.Client.Get(s.BaseURL + "/metrics")
	s.Require().NoError(err, "Failed to make request")

	body := s.readBody(resp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "testflow_page_views_total")
}
