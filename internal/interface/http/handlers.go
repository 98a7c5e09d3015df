package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/command"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/query"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/lesson"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/reward"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
	"github.com/zhuldyz-hub/zhuldyz-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING & ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// maxBodySize ограничивает размер тела запроса (1 MB).
const maxBodySize = 1 << 20

// decodeJSON decodes a JSON request body into dst. Unknown fields and
// trailing garbage are rejected.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: unexpected trailing data")
	}
	return nil
}

// writeDomainError maps an application-layer error onto an HTTP status.
// Ordering violations carry the blocking lesson so the client can show
// which lesson must be mastered first.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ordering *command.OrderingViolationError
	if errors.As(err, &ordering) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error": map[string]interface{}{
				"code":               "ordering_violation",
				"message":            ordering.Error(),
				"blocking_lesson_id": ordering.BlockingLessonID,
				"blocking_title":     ordering.BlockingTitle,
				"blocking_position":  ordering.BlockingPosition.String(),
			},
		})
		return
	}

	message := "internal error"
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}

	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_failed", message)
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", message)
	case shared.IsForbidden(err):
		writeJSONError(w, http.StatusForbidden, "forbidden", message)
	case shared.IsConflict(err):
		writeJSONError(w, http.StatusConflict, "conflict", message)
	default:
		s.log.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports service health including backing dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := make(map[string]string)

	if s.deps.HealthChecker != nil {
		for name, err := range s.deps.HealthChecker.CheckHealth(r.Context()) {
			if err != nil {
				status = "degraded"
				checks[name] = err.Error()
			} else {
				checks[name] = "ok"
			}
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"uptime": s.Uptime().String(),
		"checks": checks,
	})
}

// handleLive is the liveness probe: the process is up.
func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleRoot answers the bare path with a service banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "unknown path")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "zhuldyz-hub",
		"version": "1.0.0",
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type studentResponse struct {
	ID          string    `json:"id"`
	TeacherID   string    `json:"teacher_id"`
	DisplayName string    `json:"display_name"`
	StarBalance int       `json:"star_balance"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

func toStudentResponse(s *student.Student) studentResponse {
	return studentResponse{
		ID:          s.ID,
		TeacherID:   s.TeacherID.String(),
		DisplayName: s.DisplayName,
		StarBalance: int(s.StarBalance),
		Active:      s.Active,
		CreatedAt:   s.CreatedAt,
	}
}

type registerStudentRequest struct {
	DisplayName string `json:"display_name"`
	TeacherID   string `json:"teacher_id,omitempty"`
}

// handleRegisterStudent registers a student for the calling teacher.
func (s *Server) handleRegisterStudent(w http.ResponseWriter, r *http.Request) {
	var req registerStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.RegisterStudent.Handle(r.Context(), command.RegisterStudentCommand{
		DisplayName: req.DisplayName,
		TeacherID:   req.TeacherID,
		Actor:       actorFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStudentResponse(result.Student))
}

// handleDeactivateStudent archives a student. History is kept; the student
// leaves grading, redemption and the leaderboard.
func (s *Server) handleDeactivateStudent(w http.ResponseWriter, r *http.Request) {
	stud, err := s.deps.DeactivateStudent.Handle(r.Context(), command.DeactivateStudentCommand{
		StudentID: r.PathValue("id"),
		Actor:     actorFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toStudentResponse(stud))
}

// handleGetStudentProgress returns the student's progress card: completions,
// redemptions and the recent star journal.
func (s *Server) handleGetStudentProgress(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetStudentProgress.Handle(r.Context(), query.GetStudentProgressQuery{
		StudentID:   r.PathValue("id"),
		Actor:       actorFrom(r.Context()),
		LedgerLimit: getQueryParamInt(r, "ledger_limit", 0),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type completeLessonRequest struct {
	LessonID    string     `json:"lesson_id"`
	Stars       int        `json:"stars"`
	Notes       string     `json:"notes,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type completionResponse struct {
	RecordID    string    `json:"record_id"`
	StudentID   string    `json:"student_id"`
	LessonID    string    `json:"lesson_id"`
	StarsEarned int       `json:"stars_earned"`
	Mastered    bool      `json:"mastered"`
	Regraded    bool      `json:"regraded"`
	Delta       int       `json:"delta"`
	NewBalance  int       `json:"new_balance"`
	CompletedAt time.Time `json:"completed_at"`
}

// handleCompleteLesson grades a lesson for a student. Re-submitting a grade
// for a completed, not yet mastered lesson re-grades it.
func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	var req completeLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	cmd := command.CompleteLessonCommand{
		StudentID:     r.PathValue("id"),
		LessonID:      req.LessonID,
		StarsEarned:   req.Stars,
		Notes:         req.Notes,
		Actor:         actorFrom(r.Context()),
		CorrelationID: getRequestID(r.Context()),
	}
	if req.CompletedAt != nil {
		cmd.CompletedAt = *req.CompletedAt
	}

	result, err := s.deps.CompleteLesson.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Regraded {
		status = http.StatusOK
	}
	writeJSON(w, status, completionResponse{
		RecordID:    result.Record.ID,
		StudentID:   result.Record.StudentID,
		LessonID:    result.Record.LessonID,
		StarsEarned: result.Record.StarsEarned,
		Mastered:    result.Mastered,
		Regraded:    result.Regraded,
		Delta:       result.Delta,
		NewBalance:  result.NewBalance,
		CompletedAt: result.Record.CompletedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REDEMPTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type redeemItemRequest struct {
	RewardID string `json:"reward_id"`
	Quantity int    `json:"quantity"`
}

type redeemRewardsRequest struct {
	Items          []redeemItemRequest `json:"items"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
}

type redemptionResponse struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	RewardID  string    `json:"reward_id"`
	Quantity  int       `json:"quantity"`
	StarsCost int       `json:"stars_cost"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toRedemptionResponse(red *reward.Redemption) redemptionResponse {
	return redemptionResponse{
		ID:        red.ID,
		StudentID: red.StudentID,
		RewardID:  red.RewardID,
		Quantity:  red.Quantity,
		StarsCost: red.StarsCost,
		Status:    string(red.Status),
		CreatedAt: red.CreatedAt,
	}
}

type redeemRewardsResponse struct {
	Redemptions []redemptionResponse `json:"redemptions"`
	TotalCost   int                  `json:"total_cost"`
	NewBalance  int                  `json:"new_balance"`
}

// handleRedeemRewards exchanges a student's stars for a batch of prizes,
// all-or-nothing. The idempotency key may arrive in the Idempotency-Key
// header or the body; the header wins.
func (s *Server) handleRedeemRewards(w http.ResponseWriter, r *http.Request) {
	var req redeemRewardsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = req.IdempotencyKey
	}

	items := make([]command.RedemptionItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = command.RedemptionItem{RewardID: item.RewardID, Quantity: item.Quantity}
	}

	result, err := s.deps.RedeemRewards.Handle(r.Context(), command.RedeemRewardsCommand{
		StudentID:      r.PathValue("id"),
		Items:          items,
		IdempotencyKey: key,
		Actor:          actorFrom(r.Context()),
		CorrelationID:  getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := redeemRewardsResponse{
		Redemptions: make([]redemptionResponse, len(result.Redemptions)),
		TotalCost:   result.TotalCost,
		NewBalance:  result.NewBalance,
	}
	for i, red := range result.Redemptions {
		resp.Redemptions[i] = toRedemptionResponse(red)
	}
	writeJSON(w, http.StatusCreated, resp)
}

type updateRedemptionRequest struct {
	Status string `json:"status"`
}

type updateRedemptionResponse struct {
	Redemption redemptionResponse `json:"redemption"`
	Refunded   int                `json:"refunded"`
	NewBalance int                `json:"new_balance"`
}

// handleUpdateRedemption marks a redemption delivered or cancelled.
// Cancellation refunds the stars and restores finite stock.
func (s *Server) handleUpdateRedemption(w http.ResponseWriter, r *http.Request) {
	var req updateRedemptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.UpdateRedemption.Handle(r.Context(), command.UpdateRedemptionCommand{
		RedemptionID:  r.PathValue("id"),
		Status:        reward.Status(req.Status),
		Actor:         actorFrom(r.Context()),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updateRedemptionResponse{
		Redemption: toRedemptionResponse(result.Redemption),
		Refunded:   result.Refunded,
		NewBalance: result.NewBalance,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createLessonRequest struct {
	Title string `json:"title"`
	Level int    `json:"level"`
	Order int    `json:"order"`
}

type lessonResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Level     int       `json:"level"`
	Order     int       `json:"order"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func toLessonResponse(l *lesson.Lesson) lessonResponse {
	return lessonResponse{
		ID:        l.ID,
		Title:     l.Title,
		Level:     int(l.Position.Level),
		Order:     int(l.Position.Order),
		Active:    l.Active,
		CreatedAt: l.CreatedAt,
	}
}

// handleCreateLesson adds a lesson to the program catalog. Admin only.
func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	var req createLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	l, err := s.deps.CreateLesson.Handle(r.Context(), command.CreateLessonCommand{
		Title: req.Title,
		Level: req.Level,
		Order: req.Order,
		Actor: actorFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLessonResponse(l))
}

type createRewardRequest struct {
	Title string `json:"title"`
	Cost  int    `json:"cost"`
	Stock *int   `json:"stock,omitempty"`
}

type rewardResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Cost      int       `json:"cost"`
	Stock     int       `json:"stock"`
	Unlimited bool      `json:"unlimited"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// handleCreateReward adds a reward to the prize catalog. Admin only.
// Omitting stock creates an unlimited reward.
func (s *Server) handleCreateReward(w http.ResponseWriter, r *http.Request) {
	var req createRewardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	stock := reward.UnlimitedStock
	if req.Stock != nil {
		stock = *req.Stock
	}

	rw, err := s.deps.CreateReward.Handle(r.Context(), command.CreateRewardCommand{
		Title: req.Title,
		Cost:  req.Cost,
		Stock: stock,
		Actor: actorFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, rewardResponse{
		ID:        rw.ID,
		Title:     rw.Title,
		Cost:      rw.Cost,
		Stock:     rw.Stock,
		Unlimited: rw.Stock == reward.UnlimitedStock,
		Active:    rw.Active,
		CreatedAt: rw.CreatedAt,
	})
}

// handleGetRewards lists the active prize catalog.
func (s *Server) handleGetRewards(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetRewards.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD & STATISTICS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard returns the star ranking visible to the caller:
// admins see the whole platform, teachers see their own students.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetLeaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Actor:  actorFrom(r.Context()),
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  getQueryParamInt(r, "limit", 0),
		Offset: getQueryParamInt(r, "offset", 0),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetStatistics returns aggregates for the caller's scope: admins get
// the platform, teachers get their own class.
func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetStatistics.Handle(r.Context(), query.GetStatisticsQuery{
		Actor: actorFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
