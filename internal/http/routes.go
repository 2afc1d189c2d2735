package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/case-dispatch/internal/http/validation"
	"github.com/target/case-dispatch/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs     *service.JobService
	Bus      *service.EventBus
	Timeline *service.TimelineEngine
	Records  *service.CaseRecords
	// Metrics serves /metrics when set.
	Metrics http.Handler

	ServiceName string
	Version     string
	Logger      *slog.Logger // Optional
}

// NewRouter creates and configures the Dispatch Server router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")
	v := validation.New()

	mux := http.NewServeMux()

	jobs := &JobHandlers{Jobs: services.Jobs, Bus: services.Bus, Validator: v, Logger: logger}
	mux.HandleFunc("GET /job/next", jobs.Next)
	mux.HandleFunc("POST /job/complete", jobs.Complete)
	mux.HandleFunc("GET /jobs/pending", jobs.Pending)
	mux.HandleFunc("GET /jobs/{id}", jobs.Get)
	mux.HandleFunc("GET /stats", jobs.Stats)

	events := &EventHandlers{Bus: services.Bus, Validator: v, Logger: logger}
	mux.HandleFunc("POST /event", events.Ingest)

	if services.Timeline != nil {
		timeline := &TimelineHandlers{Engine: services.Timeline, Logger: logger}
		mux.HandleFunc("POST /notice/send", timeline.RecordNotice)
		mux.HandleFunc("POST /timeline/tick", timeline.Tick)
		mux.HandleFunc("GET /cases/{case_id}/timeline", timeline.CaseTimeline)
	}

	if services.Records != nil {
		cases := &CaseHandlers{Records: services.Records, Validator: v, Logger: logger}
		mux.HandleFunc("GET /cases/{case_id}/evidence", cases.Evidence)
		mux.HandleFunc("GET /cases/{case_id}/certified-mail", cases.CertifiedMail)
		mux.HandleFunc("POST /certified-mail/{tracking_number}/status", cases.UpdateMailStatus)
	}

	health := &HealthHandler{Service: services.ServiceName, Version: services.Version}
	mux.Handle("GET /health", health)

	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics)
	}

	return Chain(mux, RequestID(), Recover(logger), Logging(logger))
}
