package api

import "net/http"

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Public reads
	mux.HandleFunc("GET /api/submissions", h.ListSubmissions)
	mux.HandleFunc("GET /api/submissions/{id}", h.GetSubmission)
	mux.HandleFunc("GET /api/user-submissions", h.UserSubmissions)

	// Sessions
	mux.HandleFunc("POST /api/auth/sessions", h.CreateSession)
	mux.HandleFunc("DELETE /api/auth/sessions", h.DeleteSession)

	// Submissions and me-toos may be anonymous
	mux.HandleFunc("POST /api/submissions", h.OptionalAuth(h.CreateSubmission))
	mux.HandleFunc("POST /api/metoo", h.OptionalAuth(h.MeToo))

	// Moderation actions require an identity
	mux.HandleFunc("POST /api/upvote", h.RequireAuth(h.Upvote))
	mux.HandleFunc("POST /api/downvote", h.RequireAuth(h.Downvote))
	mux.HandleFunc("POST /api/flag", h.RequireAuth(h.Flag))

	// Admin routes (requires admin secret)
	mux.HandleFunc("POST /api/admin/approve", h.Approve)
	mux.HandleFunc("POST /api/admin/rescore", h.Rescore)
}
