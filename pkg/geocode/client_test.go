package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byeongteuk/btmap/internal/resilience"
)

func TestNaverGeocode_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "id", r.Header.Get("X-NCP-APIGW-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("X-NCP-APIGW-API-KEY"))
		assert.Equal(t, "서울특별시 강남구 테헤란로 123", r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"meta": {"totalCount": 1},
			"addresses": [{
				"roadAddress": "서울특별시 강남구 테헤란로 123",
				"jibunAddress": "서울특별시 강남구 역삼동 737",
				"x": "127.0300",
				"y": "37.5000"
			}]
		}`)
	}))
	defer srv.Close()

	n := NewNaver("id", "secret", testOptions(srv.URL, NaverGeocodeURL)...)
	result, err := n.Geocode(context.Background(), Query{Address: " 서울특별시 강남구 테헤란로 123 "})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 37.5, result.Lat, 1e-9)
	assert.InDelta(t, 127.03, result.Lng, 1e-9)
	assert.Equal(t, "naver", result.Source)
	assert.Equal(t, "서울특별시 강남구 테헤란로 123", result.Address)
}

func TestNaverGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"OK","meta":{"totalCount":0},"addresses":[]}`)
	}))
	defer srv.Close()

	n := NewNaver("id", "secret", WithBaseURL(srv.URL), WithInterval(0))
	result, err := n.Geocode(context.Background(), Query{Address: "어딘가"})
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestNaverGeocode_EmptyAddressSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	n := NewNaver("id", "secret", WithBaseURL(srv.URL), WithInterval(0))
	result, err := n.Geocode(context.Background(), Query{Keyword: "경기 회사"})
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Zero(t, calls.Load())
}

func TestNaverGeocode_Status(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
		transient bool
	}{
		{http.StatusUnauthorized, true, false},
		{http.StatusTooManyRequests, false, true},
		{http.StatusInternalServerError, false, true},
		{http.StatusBadRequest, false, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		n := NewNaver("id", "secret", WithBaseURL(srv.URL), WithInterval(0))
		_, err := n.Geocode(context.Background(), Query{Address: "서울"})
		require.Error(t, err, tt.status)
		assert.Equal(t, tt.permanent, resilience.IsPermanent(err), tt.status)
		assert.Equal(t, tt.transient, resilience.IsTransient(err), tt.status)
		srv.Close()
	}
}

func TestNaverGeocode_BadCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"OK","addresses":[{"x":"","y":"37.5"}]}`)
	}))
	defer srv.Close()

	n := NewNaver("id", "secret", WithBaseURL(srv.URL), WithInterval(0))
	_, err := n.Geocode(context.Background(), Query{Address: "서울"})
	assert.Error(t, err)
}

func TestNaver_Available(t *testing.T) {
	assert.True(t, NewNaver("id", "secret").Available())
	assert.False(t, NewNaver("id", "").Available())
	assert.False(t, NewNaver("", "secret").Available())
}

func TestKakaoGeocode_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "KakaoAK key", r.Header.Get("Authorization"))
		assert.Equal(t, "경기 테스트소프트", r.URL.Query().Get("query"))
		assert.Equal(t, "5", r.URL.Query().Get("size"))
		_, _ = io.WriteString(w, `{"documents":[
			{"place_name":"테스트소프트","address_name":"경기 성남시 분당구 삼평동 681","road_address_name":"","x":"127.1100","y":"37.4000"},
			{"place_name":"테스트소프트 2공장","address_name":"경기 화성시","road_address_name":"경기 화성시 동탄대로 1","x":"127.0","y":"37.2"}
		]}`)
	}))
	defer srv.Close()

	k := NewKakao("key", testOptions(srv.URL, KakaoKeywordURL)...)
	result, err := k.Geocode(context.Background(), Query{Address: "무시됨", Keyword: "경기 테스트소프트"})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "kakao", result.Source)
	assert.Equal(t, "경기 성남시 분당구 삼평동 681", result.Address, "jibun address when no road address")
	assert.InDelta(t, 37.4, result.Lat, 1e-9)
	assert.InDelta(t, 127.11, result.Lng, 1e-9)
}

func TestKakaoGeocode_FallsBackToAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "부산 해운대구", r.URL.Query().Get("query"))
		_, _ = io.WriteString(w, `{"documents":[]}`)
	}))
	defer srv.Close()

	k := NewKakao("key", WithBaseURL(srv.URL), WithInterval(0))
	result, err := k.Geocode(context.Background(), Query{Address: "부산 해운대구"})
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestInKorea(t *testing.T) {
	assert.True(t, InKorea(37.5665, 126.9780), "Seoul")
	assert.True(t, InKorea(33.4996, 126.5312), "Jeju")
	assert.True(t, InKorea(37.2411, 131.8648), "Dokdo")
	assert.False(t, InKorea(35.6762, 139.6503), "Tokyo")
	assert.False(t, InKorea(0, 0))
	assert.False(t, InKorea(127.0, 37.5), "swapped axes")
}
