package reporting

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ea7klk/bm-lh-react-sub000/internal/core/summary"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestService_HandlerStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		url            string
		store          *fakeReportStore
		expectedStatus int
	}{
		{
			name:           "leaderboard ok",
			url:            "/v1/activity/talkgroups?start=1700000000&end=1700086400",
			store:          &fakeReportStore{activity: []summary.DestinationActivity{{DestinationID: 91, TotalCalls: 3, TotalDuration: 40}}},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing range returns 400",
			url:            "/v1/activity/talkgroups",
			store:          &fakeReportStore{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "inverted range returns 400",
			url:            "/v1/activity/talkgroups?start=200&end=100",
			store:          &fakeReportStore{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "oversized limit returns 400",
			url:            "/v1/activity/talkgroups?start=0&end=3600&limit=501",
			store:          &fakeReportStore{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "store error returns 500",
			url:            "/v1/activity/talkgroups?start=0&end=3600",
			store:          &fakeReportStore{err: errors.New("db failure")},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "sources non-numeric destination returns 400",
			url:            "/v1/activity/talkgroups/not-a-number/sources?start=0&end=3600",
			store:          &fakeReportStore{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "sources ok",
			url:            "/v1/activity/talkgroups/91/sources?start=0&end=3600",
			store:          &fakeReportStore{sources: []summary.SourceActivity{{SourceID: 2147483, TotalCalls: 1, TotalDuration: 5}}},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "hourly bad destination filter returns 400",
			url:            "/v1/activity/hourly?start=0&end=3600&destination_id=abc",
			store:          &fakeReportStore{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "hourly ok",
			url:            "/v1/activity/hourly?start=0&end=3600",
			store:          &fakeReportStore{},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "runs ok",
			url:            "/v1/admin/runs",
			store:          &fakeReportStore{},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "runs bad limit returns 400",
			url:            "/v1/admin/runs?limit=abc",
			store:          &fakeReportStore{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "statistics ok",
			url:            "/v1/admin/statistics",
			store:          &fakeReportStore{stats: &summary.StoreStatistics{}},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(tc.store)
			r := gin.New()
			svc.RegisterRoutes(r)

			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)

			if resp.Code != tc.expectedStatus {
				t.Logf("unexpected response body: %s", resp.Body.String())
			}
			require.Equal(t, tc.expectedStatus, resp.Code)
		})
	}
}

func TestService_HandleTalkgroupLeaderboardBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeReportStore{activity: []summary.DestinationActivity{
		{DestinationID: 91, DestinationCall: "91", DestinationName: "World-wide", TotalCalls: 3, TotalDuration: 40, DistinctSources: 2},
	}}
	svc := NewService(store)
	r := gin.New()
	svc.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/v1/activity/talkgroups?start=1700000000&end=1700086400&limit=10", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 10, store.lastLimit)

	var body TalkgroupActivityResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, int64(1700000000), body.Start)
	require.Len(t, body.Talkgroups, 1)
	require.Equal(t, "World-wide", body.Talkgroups[0].DestinationName)
	require.Equal(t, int64(13), body.Talkgroups[0].AvgDuration)
}
