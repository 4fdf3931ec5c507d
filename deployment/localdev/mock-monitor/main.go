package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type service struct {
	EntityID        string   `json:"entityId"`
	DisplayName     string   `json:"displayName"`
	ServiceType     string   `json:"serviceType"`
	Tags            []string `json:"tags"`
	ManagementZones []string `json:"managementZones"`
}

type entityRef struct {
	EntityID struct {
		ID string `json:"id"`
	} `json:"entityId"`
}

type problem struct {
	ProblemID        string      `json:"problemId"`
	Title            string      `json:"title"`
	SeverityLevel    string      `json:"severityLevel"`
	Relevance        string      `json:"relevance"`
	ImpactedEntities []entityRef `json:"impactedEntities"`
	AffectedEntities []entityRef `json:"affectedEntities"`
	RootCauseEntity  *entityRef  `json:"rootCauseEntity"`
}

func ref(id string) entityRef {
	var e entityRef
	e.EntityID.ID = id
	return e
}

var metricsByEntity = map[string]map[string]float64{
	"SERVICE-1": {"error_count": 150, "response_time": 620, "failure_rate": 3.2, "request_count": 41000},
	"SERVICE-2": {"error_count": 1200, "response_time": 2400, "failure_rate": 12.5, "request_count": 9800},
	"SERVICE-3": {"error_count": 4, "response_time": 180, "request_count": 62000},
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v2/entities/services", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"services": []service{
				{EntityID: "SERVICE-1", DisplayName: "checkout", ServiceType: "WebService", Tags: []string{"tier:frontend"}},
				{EntityID: "SERVICE-2", DisplayName: "payments", ServiceType: "WebService", ManagementZones: []string{"commerce"}},
				{EntityID: "SERVICE-3", DisplayName: "inventory", ServiceType: "DatabaseService"},
			},
		})
	})

	mux.HandleFunc("/api/v2/metrics/query", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		entityID := r.URL.Query().Get("entityId")
		metrics, ok := metricsByEntity[entityID]
		if !ok {
			metrics = map[string]float64{}
		}
		writeJSON(w, map[string]any{"metrics": metrics})
	})

	mux.HandleFunc("/api/v2/problems", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		root := ref("SERVICE-2")
		writeJSON(w, map[string]any{
			"problems": []problem{
				{
					ProblemID:        "P-230984",
					Title:            "Failure rate increase on payments",
					SeverityLevel:    "ERROR",
					Relevance:        "HIGH",
					ImpactedEntities: []entityRef{ref("SERVICE-1"), ref("SERVICE-2")},
					AffectedEntities: []entityRef{ref("SERVICE-2")},
					RootCauseEntity:  &root,
				},
				{
					ProblemID:        "P-230991",
					Title:            "Response time degradation",
					SeverityLevel:    "RESOURCE_CONTENTION",
					ImpactedEntities: []entityRef{ref("SERVICE-2")},
				},
			},
		})
	})

	logger := log.New(log.Writer(), "monitor-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforceGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
