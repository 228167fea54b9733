package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alphabot-ai/gripeboard/internal/moderation"
	"github.com/alphabot-ai/gripeboard/internal/store"
	"go.uber.org/zap"
)

type CreateSubmissionRequest struct {
	Title           string         `json:"title"`
	Company         string         `json:"company"`
	Description     string         `json:"description"`
	TimeWasted      minutes        `json:"timeWasted"`
	Category        string         `json:"category"`
	PrimaryCategory string         `json:"primaryCategory,omitempty"`
	Subcategory     string         `json:"subcategory,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	Severity        store.Severity `json:"severity"`
	SubmittedBy     string         `json:"submittedBy,omitempty"`
	Screenshot      string         `json:"screenshot"`
}

type CreateSubmissionResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type ListSubmissionsResponse struct {
	Submissions []*store.Submission `json:"submissions"`
}

type UserSubmissionsResponse struct {
	Submissions []*store.SubmissionSummary `json:"submissions"`
}

// CreateSubmission handles POST /api/submissions. New submissions wait for
// approval before they are listed.
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	allowed, retryAfter := h.checkRateLimit(w, r, "submission", h.cfg.SubmissionRateLimit)
	if !allowed {
		writeRateLimited(w, retryAfter)
		return
	}

	var req CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Company = strings.TrimSpace(req.Company)
	if req.Title == "" || req.Company == "" || strings.TrimSpace(req.Description) == "" ||
		req.TimeWasted == 0 || req.Category == "" || req.Severity == "" || req.Screenshot == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if err := moderation.CheckTimeWasted(int(req.TimeWasted)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Severity.Valid() {
		writeError(w, http.StatusBadRequest, "severity must be one of trivial, mild, moderate, serious, severe, critical")
		return
	}
	if utf8.RuneCountInString(req.Title) > 180 {
		writeError(w, http.StatusBadRequest, "title must be at most 180 characters")
		return
	}
	if len(req.Tags) > 5 {
		writeError(w, http.StatusBadRequest, "maximum 5 tags allowed")
		return
	}

	submittedBy := strings.TrimSpace(req.SubmittedBy)
	if submittedBy == "" {
		submittedBy = moderation.AnonymousName
	}

	sub := &store.Submission{
		Title:           req.Title,
		Company:         req.Company,
		Description:     req.Description,
		PrimaryCategory: req.PrimaryCategory,
		Subcategory:     req.Subcategory,
		Category:        req.Category,
		Tags:            req.Tags,
		Severity:        req.Severity,
		TimeWasted:      int(req.TimeWasted),
		Screenshot:      req.Screenshot,
		SubmittedBy:     submittedBy,
		UserID:          GetIdentityFromContext(r.Context()),
	}

	if err := h.store.CreateSubmission(r.Context(), sub); err != nil {
		h.logger.Error("create submission", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to submit. Please try again.")
		return
	}

	writeJSON(w, http.StatusCreated, CreateSubmissionResponse{
		Message: "Submission received! It will be reviewed and published soon.",
		ID:      sub.ID,
	})
}

// GetSubmission handles GET /api/submissions/{id}
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "submission id required")
		return
	}

	sub, err := h.store.GetSubmission(r.Context(), id)
	if err != nil {
		h.logger.Error("get submission", zap.String("submission_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if sub == nil || !sub.Approved || sub.HiddenByModeration {
		writeError(w, http.StatusNotFound, "Submission not found")
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// ListSubmissions handles GET /api/submissions
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var sort store.SortOrder
	switch query.Get("sort") {
	case "top":
		sort = store.SortTop
	case "metoo":
		sort = store.SortMeToo
	default:
		sort = store.SortNew
	}

	limit := 30
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	subs, err := h.store.ListSubmissions(r.Context(), store.ListOptions{
		Sort:    sort,
		Company: query.Get("company"),
		Limit:   limit,
	})
	if err != nil {
		h.logger.Error("list submissions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if subs == nil {
		subs = []*store.Submission{}
	}

	writeJSON(w, http.StatusOK, ListSubmissionsResponse{Submissions: subs})
}

// UserSubmissions handles GET /api/user-submissions?email=
func (h *Handler) UserSubmissions(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.logger.Error("get user by email", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch submissions")
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, UserSubmissionsResponse{Submissions: []*store.SubmissionSummary{}})
		return
	}

	summaries, err := h.store.ListSubmissionsByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("list user submissions", zap.String("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch submissions")
		return
	}

	writeJSON(w, http.StatusOK, UserSubmissionsResponse{Submissions: summaries})
}
