package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"talentmatch/api/internal/auth"
	"talentmatch/api/internal/config"
	"talentmatch/api/internal/events"
	"talentmatch/api/internal/handlers"
	"talentmatch/api/internal/models"
	"talentmatch/api/internal/queue"
	"talentmatch/api/internal/quota"
	"talentmatch/api/internal/repositories"
)

// fakeEnqueuer records every payload instead of talking to a broker.
type fakeEnqueuer struct {
	resumeJobs []queue.ParseResumePayload
	parseJobs  []queue.ParseJobPayload
	matchJobs  []queue.ComputeMatchPayload
	err        error
}

func (f *fakeEnqueuer) EnqueueParseResume(_ context.Context, p queue.ParseResumePayload) error {
	if f.err != nil {
		return f.err
	}
	f.resumeJobs = append(f.resumeJobs, p)
	return nil
}

func (f *fakeEnqueuer) EnqueueParseJob(_ context.Context, p queue.ParseJobPayload) error {
	if f.err != nil {
		return f.err
	}
	f.parseJobs = append(f.parseJobs, p)
	return nil
}

func (f *fakeEnqueuer) EnqueueComputeMatch(_ context.Context, p queue.ComputeMatchPayload) error {
	if f.err != nil {
		return f.err
	}
	f.matchJobs = append(f.matchJobs, p)
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
	putErr  error
}

func (s *fakeStorage) PutObject(_ context.Context, key string, data []byte, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) GetObjectBytes(_ context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	enqueuer *fakeEnqueuer
	storage  *fakeStorage
	resumes  repositories.ResumeRepository
	jobs     repositories.JobRepository
	matches  repositories.MatchRepository
	users    repositories.UserRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Resume{},
		&models.CandidateSkill{},
		&models.Job{},
		&models.Requirement{},
		&models.JobSoftSkill{},
		&models.MatchJob{},
		&models.MatchResult{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zap.NewNop()
	bus := events.NewBus(logger)
	users := repositories.NewUserRepository(db)
	resumes := repositories.NewResumeRepository(db, bus)
	jobs := repositories.NewJobRepository(db, bus)
	matches := repositories.NewMatchRepository(db, bus)

	enqueuer := &fakeEnqueuer{}
	storage := &fakeStorage{objects: make(map[string][]byte)}

	verifier, err := auth.NewVerifier(context.Background(), config.AuthConfig{Disabled: true}, logger)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	const maxFileSize = 10 << 20

	authMiddleware := handlers.NewAuthMiddleware(verifier, users, logger)
	resumeHandler := handlers.NewResumeHandler(resumes, storage, enqueuer, maxFileSize, logger)
	jobHandler := handlers.NewJobHandler(jobs, storage, enqueuer, maxFileSize, logger)
	matchHandler := handlers.NewMatchHandler(matches, resumes, jobs, quota.NewEnforcer(users, logger), enqueuer, logger)
	usageHandler := handlers.NewUsageHandler(users, logger)

	app := fiber.New(fiber.Config{BodyLimit: maxFileSize + 1<<20})

	api := app.Group("/api/v1")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	protected := api.Group("", authMiddleware.Handle)
	protected.Post("/resumes", resumeHandler.HandleUpload)
	protected.Get("/resumes", resumeHandler.HandleList)
	protected.Get("/resumes/:id", resumeHandler.HandleGet)
	protected.Delete("/resumes/:id", resumeHandler.HandleDelete)
	protected.Post("/jobs", jobHandler.HandleCreate)
	protected.Get("/jobs", jobHandler.HandleList)
	protected.Get("/jobs/:id", jobHandler.HandleGet)
	protected.Delete("/jobs/:id", jobHandler.HandleDelete)
	protected.Post("/matches", matchHandler.HandleCreate)
	protected.Get("/matches", matchHandler.HandleList)
	protected.Get("/matches/:id", matchHandler.HandleGet)
	protected.Get("/usage", usageHandler.HandleGet)

	return &testEnv{
		app:      app,
		db:       db,
		enqueuer: enqueuer,
		storage:  storage,
		resumes:  resumes,
		jobs:     jobs,
		matches:  matches,
		users:    users,
	}
}

func (e *testEnv) request(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := e.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func (e *testEnv) devUser(t *testing.T) *models.User {
	t.Helper()

	user, err := e.users.EnsureUser(context.Background(), auth.DevSubject, nil)
	if err != nil {
		t.Fatalf("ensure dev user: %v", err)
	}
	return user
}

func decodeBody(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		t.Fatalf("decode body %s: %v", body, err)
	}
}

func multipartUpload(t *testing.T, field, filename, contentType string, content []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}

	for k, v := range extra {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	return buf, writer.FormDataContentType()
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]bool
	decodeBody(t, resp, &body)
	if !body["ok"] {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestResumeUploadHappyPath(t *testing.T) {
	env := newTestEnv(t)

	buf, contentType := multipartUpload(t, "file", "resume.txt", "text/plain", []byte("hello resume"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", buf)
	req.Header.Set("Content-Type", contentType)

	resp := env.request(t, req)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var created models.CreatedResponse
	decodeBody(t, resp, &created)
	if created.Status != "queued" {
		t.Fatalf("expected queued, got %q", created.Status)
	}

	if len(env.enqueuer.resumeJobs) != 1 {
		t.Fatalf("expected one enqueued job, got %d", len(env.enqueuer.resumeJobs))
	}
	payload := env.enqueuer.resumeJobs[0]
	if payload.ResumeID.String() != created.ID {
		t.Fatal("payload must reference the created row")
	}
	if payload.Filename != "resume.txt" || payload.MimeType != "text/plain" {
		t.Fatalf("payload metadata wrong: %+v", payload)
	}
	if !strings.HasPrefix(payload.StorageKey, "resumes/") || !strings.HasSuffix(payload.StorageKey, ".txt") {
		t.Fatalf("unexpected storage key %q", payload.StorageKey)
	}

	stored, ok := env.storage.objects[payload.StorageKey]
	if !ok || string(stored) != "hello resume" {
		t.Fatal("bytes must be written before the enqueue")
	}
}

func TestResumeUploadMissingFile(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	resp := env.request(t, req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestResumeUploadUnsupportedMime(t *testing.T) {
	env := newTestEnv(t)

	buf, contentType := multipartUpload(t, "file", "resume.gif", "image/gif", []byte("gif"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", buf)
	req.Header.Set("Content-Type", contentType)

	resp := env.request(t, req)
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.StatusCode)
	}
	if len(env.enqueuer.resumeJobs) != 0 {
		t.Fatal("rejected uploads must not enqueue")
	}
}

func TestResumeUploadStorageFailureLeavesQueuedRow(t *testing.T) {
	env := newTestEnv(t)
	env.storage.putErr = errors.New("bucket down")

	buf, contentType := multipartUpload(t, "file", "resume.txt", "text/plain", []byte("x"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", buf)
	req.Header.Set("Content-Type", contentType)

	resp := env.request(t, req)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if len(env.enqueuer.resumeJobs) != 0 {
		t.Fatal("storage failure must not enqueue")
	}

	// The row stays behind in queued for operational recovery.
	var count int64
	env.db.Model(&models.Resume{}).Where("status = ?", models.StatusQueued).Count(&count)
	if count != 1 {
		t.Fatalf("expected one queued row, got %d", count)
	}
}

func TestResumeDetailAndNotFoundCollapse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.devUser(t)
	stranger, err := env.users.EnsureUser(ctx, "stranger|2", nil)
	if err != nil {
		t.Fatalf("ensure stranger: %v", err)
	}

	mine := &models.Resume{
		ID:         uuid.New(),
		UserID:     owner.ID,
		Filename:   "mine.txt",
		MimeType:   "text/plain",
		StorageKey: "resumes/mine.txt",
		Status:     models.StatusReady,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	theirs := &models.Resume{
		ID:         uuid.New(),
		UserID:     stranger.ID,
		Filename:   "theirs.txt",
		MimeType:   "text/plain",
		StorageKey: "resumes/theirs.txt",
		Status:     models.StatusReady,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := env.resumes.Create(ctx, mine); err != nil {
		t.Fatalf("create mine: %v", err)
	}
	if err := env.resumes.Create(ctx, theirs); err != nil {
		t.Fatalf("create theirs: %v", err)
	}

	resp := env.request(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+mine.ID.String(), nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for own resume, got %d", resp.StatusCode)
	}

	// Another user's resume reads as 404, not 403.
	resp = env.request(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+theirs.ID.String(), nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign resume, got %d", resp.StatusCode)
	}

	resp = env.request(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes", nil))
	var list []models.ResumeListItem
	decodeBody(t, resp, &list)
	if len(list) != 1 || list[0].ID != mine.ID.String() {
		t.Fatalf("list must only contain own rows: %+v", list)
	}
}

func TestJobCreateFromText(t *testing.T) {
	env := newTestEnv(t)

	body := `{"title":"Engineer","text":"Looking for Python skills"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := env.request(t, req)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var created models.CreatedResponse
	decodeBody(t, resp, &created)
	if created.Status != "queued" {
		t.Fatalf("expected queued, got %q", created.Status)
	}

	if len(env.enqueuer.parseJobs) != 1 {
		t.Fatalf("expected one enqueued job, got %d", len(env.enqueuer.parseJobs))
	}
	payload := env.enqueuer.parseJobs[0]
	if payload.Source != models.JobSourceText {
		t.Fatalf("expected text source, got %s", payload.Source)
	}
	if payload.RawText == nil || *payload.RawText != "Looking for Python skills" {
		t.Fatalf("raw text not forwarded: %+v", payload)
	}
	if payload.StorageKey != nil {
		t.Fatal("text jobs have no storage key")
	}
}

func TestJobCreateValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		body string
		want string
	}{
		{`{"text":"some text"}`, "title_required"},
		{`{"title":"Engineer"}`, "file_or_text_required"},
		{`{"title":"Engineer","text":"  "}`, "file_or_text_required"},
	}

	for _, c := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")

		resp := env.request(t, req)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", c.body, resp.StatusCode)
		}
		var body map[string]string
		decodeBody(t, resp, &body)
		if body["error"] != c.want {
			t.Fatalf("body %s: expected error %q, got %q", c.body, c.want, body["error"])
		}
	}

	if len(env.enqueuer.parseJobs) != 0 {
		t.Fatal("invalid requests must not enqueue")
	}
}

func TestJobCreateFromFile(t *testing.T) {
	env := newTestEnv(t)

	buf, contentType := multipartUpload(t, "file", "posting.pdf", "application/pdf", []byte("%PDF-"), map[string]string{"title": "Engineer"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", buf)
	req.Header.Set("Content-Type", contentType)

	resp := env.request(t, req)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	if len(env.enqueuer.parseJobs) != 1 {
		t.Fatalf("expected one enqueued job, got %d", len(env.enqueuer.parseJobs))
	}
	payload := env.enqueuer.parseJobs[0]
	if payload.Source != models.JobSourceFile || payload.StorageKey == nil {
		t.Fatalf("file job payload wrong: %+v", payload)
	}
	if _, ok := env.storage.objects[*payload.StorageKey]; !ok {
		t.Fatal("file bytes must be uploaded")
	}
}

func TestJobSoftDeleteScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.devUser(t)
	job := &models.Job{
		ID:        uuid.New(),
		UserID:    owner.ID,
		Title:     "Engineer",
		Source:    models.JobSourceText,
		MimeType:  "text/plain",
		Status:    models.StatusReady,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := env.jobs.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	resp := env.request(t, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+job.ID.String(), nil))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = env.request(t, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	var list []models.JobListItem
	decodeBody(t, resp, &list)
	if len(list) != 0 {
		t.Fatalf("deleted job must vanish from lists: %+v", list)
	}

	resp = env.request(t, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID.String(), nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var raw models.Job
	if err := env.db.Where("id = ?", job.ID).First(&raw).Error; err != nil {
		t.Fatalf("physical row must survive: %v", err)
	}
	if !raw.IsDeleted {
		t.Fatal("is_deleted must be set")
	}
}

func seedReadyPair(t *testing.T, env *testEnv, userID uuid.UUID) (*models.Resume, *models.Job) {
	t.Helper()
	ctx := context.Background()

	resume := &models.Resume{
		ID:         uuid.New(),
		UserID:     userID,
		Filename:   "resume.txt",
		MimeType:   "text/plain",
		StorageKey: "resumes/r.txt",
		Status:     models.StatusReady,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := env.resumes.Create(ctx, resume); err != nil {
		t.Fatalf("create resume: %v", err)
	}

	job := &models.Job{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     "Engineer",
		Source:    models.JobSourceText,
		MimeType:  "text/plain",
		Status:    models.StatusReady,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := env.jobs.Create(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	return resume, job
}

func postMatch(t *testing.T, env *testEnv, resumeID, jobID string, headers map[string]string) *http.Response {
	t.Helper()

	body := fmt.Sprintf(`{"resumeId":%q,"jobId":%q}`, resumeID, jobID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return env.request(t, req)
}

func TestMatchCreateHappyPath(t *testing.T) {
	env := newTestEnv(t)
	user := env.devUser(t)
	resume, job := seedReadyPair(t, env, user.ID)

	resp := postMatch(t, env, resume.ID.String(), job.ID.String(), nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var created models.CreatedResponse
	decodeBody(t, resp, &created)
	if created.Status != "queued" {
		t.Fatalf("expected queued, got %q", created.Status)
	}

	if len(env.enqueuer.matchJobs) != 1 {
		t.Fatalf("expected one enqueued computation, got %d", len(env.enqueuer.matchJobs))
	}
	payload := env.enqueuer.matchJobs[0]
	if payload.ResumeID != resume.ID || payload.JobID != job.ID {
		t.Fatalf("payload mismatch: %+v", payload)
	}

	fresh, err := env.users.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if fresh.AnnualUsageCount != 1 {
		t.Fatalf("match creation must consume quota, got %d", fresh.AnnualUsageCount)
	}
}

func TestMatchCreateValidation(t *testing.T) {
	env := newTestEnv(t)

	resp := postMatch(t, env, "", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "resumeId_and_jobId_required" {
		t.Fatalf("unexpected error %q", body["error"])
	}
}

func TestMatchCreatePreconditionNotReady(t *testing.T) {
	env := newTestEnv(t)
	user := env.devUser(t)
	resume, job := seedReadyPair(t, env, user.ID)

	// Resume still processing, job ready.
	env.db.Model(&models.Resume{}).Where("id = ?", resume.ID).Update("status", models.StatusProcessing)

	resp := postMatch(t, env, resume.ID.String(), job.ID.String(), nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "resume_not_ready" {
		t.Fatalf("unexpected error %q", body["error"])
	}

	var count int64
	env.db.Model(&models.MatchJob{}).Count(&count)
	if count != 0 {
		t.Fatal("no match job row may be created on precondition failure")
	}
}

func TestMatchCreateUnknownInputsAre404(t *testing.T) {
	env := newTestEnv(t)
	user := env.devUser(t)
	_, job := seedReadyPair(t, env, user.ID)

	resp := postMatch(t, env, uuid.New().String(), job.ID.String(), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "resume_not_found" {
		t.Fatalf("unexpected error %q", body["error"])
	}
}

func TestMatchCreateQuotaGate(t *testing.T) {
	env := newTestEnv(t)
	user := env.devUser(t)
	resume, job := seedReadyPair(t, env, user.ID)

	start := time.Now().Add(-100 * 24 * time.Hour)
	env.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"annual_limit":        1,
		"annual_usage_count":  1,
		"annual_period_start": start,
	})

	resp := postMatch(t, env, resume.ID.String(), job.ID.String(), nil)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "upgrade_required" {
		t.Fatalf("unexpected error %q", body["error"])
	}
	if len(env.enqueuer.matchJobs) != 0 {
		t.Fatal("refused match must not enqueue")
	}

	// An expired window admits the next call and restarts counting.
	expired := time.Now().Add(-400 * 24 * time.Hour)
	env.db.Model(&models.User{}).Where("id = ?", user.ID).Update("annual_period_start", expired)

	resp = postMatch(t, env, resume.ID.String(), job.ID.String(), nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 after window expiry, got %d", resp.StatusCode)
	}

	fresh, _ := env.users.FindByID(context.Background(), user.ID)
	if fresh.AnnualUsageCount != 1 {
		t.Fatalf("expected fresh window count 1, got %d", fresh.AnnualUsageCount)
	}
	if fresh.AnnualPeriodStart == nil || time.Since(*fresh.AnnualPeriodStart) > time.Minute {
		t.Fatal("window start should be reset to approximately now")
	}
}

func TestMatchCreateProMemberBypassesQuota(t *testing.T) {
	env := newTestEnv(t)
	user := env.devUser(t)
	resume, job := seedReadyPair(t, env, user.ID)

	start := time.Now().Add(-10 * 24 * time.Hour)
	env.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"annual_limit":        1,
		"annual_usage_count":  1,
		"annual_period_start": start,
	})

	resp := postMatch(t, env, resume.ID.String(), job.ID.String(), map[string]string{handlers.ProMemberHeader: "1"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("pro member must bypass the gate, got %d", resp.StatusCode)
	}

	fresh, _ := env.users.FindByID(context.Background(), user.ID)
	if fresh.AnnualUsageCount != 1 {
		t.Fatalf("pro calls must not be counted, got %d", fresh.AnnualUsageCount)
	}
}

func TestMatchDetailEmbedsResult(t *testing.T) {
	env := newTestEnv(t)
	user := env.devUser(t)
	ctx := context.Background()

	result := &models.MatchResult{
		ID:        uuid.New(),
		UserID:    user.ID,
		ResumeID:  uuid.New(),
		JobID:     uuid.New(),
		Score:     0.8,
		Summary:   []byte(`{"overall_match_score":0.8,"details":[]}`),
		CreatedAt: time.Now(),
	}
	if err := env.matches.CreateResult(ctx, result); err != nil {
		t.Fatalf("create result: %v", err)
	}

	matchJob := &models.MatchJob{
		ID:        uuid.New(),
		UserID:    user.ID,
		ResumeID:  result.ResumeID,
		JobID:     result.JobID,
		Status:    models.MatchQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := env.matches.CreateJob(ctx, matchJob); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := env.matches.Complete(ctx, matchJob.ID, result.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	resp := env.request(t, httptest.NewRequest(http.MethodGet, "/api/v1/matches/"+matchJob.ID.String(), nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var detail models.MatchDetailResponse
	decodeBody(t, resp, &detail)
	if detail.Status != "completed" {
		t.Fatalf("unexpected status %q", detail.Status)
	}
	if detail.Match == nil || detail.Match.Score != 0.8 {
		t.Fatalf("result not embedded: %+v", detail.Match)
	}
}

func TestUsageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user := env.devUser(t)

	start := time.Now().Add(-30 * 24 * time.Hour)
	env.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"annual_limit":        100,
		"annual_usage_count":  12,
		"annual_period_start": start,
	})

	resp := env.request(t, httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var usage models.UsageResponse
	decodeBody(t, resp, &usage)
	if usage.AnnualLimit != 100 || usage.AnnualUsageCount != 12 || usage.Remaining != 88 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if usage.AnnualPeriodStart == nil {
		t.Fatal("period start missing")
	}
}
