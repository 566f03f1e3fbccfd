package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IBM/sarama"
)

type stubDB struct{ err error }

func (s *stubDB) Health() error { return s.err }

type stubRedisHealth struct{ err error }

func (s *stubRedisHealth) Health(context.Context) error { return s.err }

func kafkaOK([]string) error { return nil }

func decodeHealth(t *testing.T, rr *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	return resp
}

func TestHealthHandler_Health(t *testing.T) {
	cases := []struct {
		name       string
		dbErr      error
		redisErr   error
		kafkaErr   error
		wantCode   int
		wantStatus string
	}{
		{"all healthy", nil, nil, nil, http.StatusOK, statusHealthy},
		{"kafka down degrades", nil, nil, errors.New("kafka down"), http.StatusOK, statusDegraded},
		{"redis down", nil, errors.New("redis down"), nil, http.StatusServiceUnavailable, statusUnhealthy},
		{"database down", errors.New("db down"), nil, errors.New("kafka down"), http.StatusServiceUnavailable, statusUnhealthy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(&stubDB{err: tc.dbErr}, &stubRedisHealth{err: tc.redisErr}, []string{"kafka:9092"},
				func([]string) error { return tc.kafkaErr })
			rr := httptest.NewRecorder()
			h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			resp := decodeHealth(t, rr)
			if resp.Status != tc.wantStatus {
				t.Fatalf("expected status %s, got %s", tc.wantStatus, resp.Status)
			}
			if len(resp.Components) != 3 {
				t.Fatalf("expected 3 components, got %v", resp.Components)
			}
			if tc.kafkaErr != nil && resp.Components["kafka"].Error != tc.kafkaErr.Error() {
				t.Fatalf("kafka error not reported: %+v", resp.Components["kafka"])
			}
		})
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	h := NewHealthHandler(&stubDB{}, &stubRedisHealth{}, nil, kafkaOK)
	rr := httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	h = NewHealthHandler(&stubDB{err: errors.New("db down")}, &stubRedisHealth{}, nil, kafkaOK)
	rr = httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestHealthHandler_ReadinessWithoutKafka(t *testing.T) {
	h := NewHealthHandler(&stubDB{}, &stubRedisHealth{}, []string{"kafka:9092"}, func([]string) error { return errors.New("kafka down") })

	rr := httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("kafka outage must not block readiness, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["mode"] != statusDegraded {
		t.Fatalf("expected degraded mode, got %q", body["mode"])
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(&stubDB{err: errors.New("db down")}, &stubRedisHealth{}, nil, kafkaOK)
	rr := httptest.NewRecorder()
	h.Liveness(rr, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("liveness must ignore dependencies, got %d", rr.Code)
	}
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	h := NewHealthHandler(&stubDB{}, &stubRedisHealth{}, nil, kafkaOK)
	for path, fn := range map[string]http.HandlerFunc{
		"/health":           h.Health,
		"/health/readiness": h.Readiness,
		"/health/liveness":  h.Liveness,
	} {
		rr := httptest.NewRecorder()
		fn(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", path, rr.Code)
		}
	}
}

func TestCheckKafkaHealth_NoBrokers(t *testing.T) {
	if err := CheckKafkaHealth(nil); !errors.Is(err, errNoBrokers) {
		t.Fatalf("expected errNoBrokers, got %v", err)
	}
}

func TestCheckKafkaHealth_WithMockBroker(t *testing.T) {
	broker := sarama.NewMockBroker(t, 1)
	defer broker.Close()

	broker.SetHandlerByMap(map[string]sarama.MockResponse{
		"MetadataRequest": sarama.NewMockMetadataResponse(t).
			SetBroker(broker.Addr(), broker.BrokerID()).
			SetController(broker.BrokerID()).
			SetLeader("order-events", 0, broker.BrokerID()),
	})

	if err := CheckKafkaHealth([]string{broker.Addr()}); err != nil {
		t.Fatalf("expected kafka health ok, got %v", err)
	}
}
