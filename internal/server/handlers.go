package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Siva2k2k/es-tm/internal/billing"
	"github.com/Siva2k2k/es-tm/internal/domain"
)

// timesheetResponse is a timesheet together with its active entries
type timesheetResponse struct {
	*domain.Timesheet
	Entries []domain.TimeEntry `json:"entries"`
}

// invoiceResponse adds the status as of now, which reports overdue invoices
type invoiceResponse struct {
	*domain.Invoice
	EffectiveStatus domain.InvoiceStatus `json:"effective_status"`
}

func (s *Server) invoiceView(inv *domain.Invoice) invoiceResponse {
	return invoiceResponse{Invoice: inv, EffectiveStatus: inv.EffectiveStatus(s.invoices.Now())}
}

// actor is only called behind requireActor
func actor(r *http.Request) domain.Actor {
	a, _ := actorFrom(r.Context())
	return a
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// respondTimesheet writes ts along with its current entries
func (s *Server) respondTimesheet(w http.ResponseWriter, r *http.Request, status int, ts *domain.Timesheet) {
	entries, err := s.timesheets.ListEntries(r.Context(), ts.ID)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, status)
	render.JSON(w, r, timesheetResponse{Timesheet: ts, Entries: entries})
}

func (s *Server) handleListTimesheets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.TimesheetFilter{UserID: strings.TrimSpace(q.Get("user_id"))}
	for _, status := range strings.Split(q.Get("status"), ",") {
		if status = strings.TrimSpace(status); status != "" {
			filter.Statuses = append(filter.Statuses, domain.TimesheetStatus(status))
		}
	}
	from, err := parseOptionalDate("from", q.Get("from"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	to, err := parseOptionalDate("to", q.Get("to"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	if from != nil || to != nil {
		if from == nil || to == nil {
			renderError(w, r, domain.Validationf("period", "from and to must be given together"))
			return
		}
		filter.Period = &domain.Period{From: *from, To: *to}
	}

	timesheets, err := s.timesheets.ListTimesheets(r.Context(), filter)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, timesheets)
}

func (s *Server) handleCreateTimesheet(w http.ResponseWriter, r *http.Request) {
	req := &createTimesheetRequest{}
	if err := bind(r, req); err != nil {
		renderError(w, r, err)
		return
	}
	a := actor(r)
	userID, role := req.UserID, req.UserRole
	if userID == "" {
		userID, role = a.ID, a.Role
	}

	ts, err := s.timesheets.CreateTimesheet(r.Context(), a, userID, role, req.weekStart)
	if err != nil {
		renderError(w, r, err)
		return
	}
	s.respondTimesheet(w, r, http.StatusCreated, ts)
}

func (s *Server) handleGetTimesheet(w http.ResponseWriter, r *http.Request) {
	ts, err := s.timesheets.GetTimesheet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	s.respondTimesheet(w, r, http.StatusOK, ts)
}

func (s *Server) handleDeleteTimesheet(w http.ResponseWriter, r *http.Request) {
	if err := s.timesheets.DeleteTimesheet(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	req := &addEntryRequest{}
	if err := bind(r, req); err != nil {
		renderError(w, r, err)
		return
	}
	a := actor(r)
	userID, role := req.UserID, req.UserRole
	if userID == "" {
		userID, role = a.ID, a.Role
	}

	ts, entry, err := s.timesheets.AddEntry(r.Context(), a, userID, role, req.entry)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{"timesheet": ts, "entry": entry})
}

func (s *Server) handleReplaceEntries(w http.ResponseWriter, r *http.Request) {
	req := &replaceEntriesRequest{}
	if err := bind(r, req); err != nil {
		renderError(w, r, err)
		return
	}
	ts, entries, err := s.timesheets.ReplaceEntries(r.Context(), actor(r), chi.URLParam(r, "id"), req.inputs)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, timesheetResponse{Timesheet: ts, Entries: entries})
}

func (s *Server) handleSubmitTimesheet(w http.ResponseWriter, r *http.Request) {
	ts, err := s.timesheets.Submit(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	s.respondTimesheet(w, r, http.StatusOK, ts)
}

func (s *Server) handleTimesheetDecision(w http.ResponseWriter, r *http.Request) {
	req := &decisionRequest{}
	if err := bind(r, req); err != nil {
		renderError(w, r, err)
		return
	}
	if req.Level == "" {
		renderError(w, r, domain.Validationf("level", "is required"))
		return
	}
	ts, err := s.timesheets.Decide(r.Context(), actor(r), chi.URLParam(r, "id"), req.Level, req.Action, req.Reason)
	if err != nil {
		renderError(w, r, err)
		return
	}
	s.respondTimesheet(w, r, http.StatusOK, ts)
}

func (s *Server) handleMarkBilled(w http.ResponseWriter, r *http.Request) {
	ts, err := s.timesheets.MarkBilled(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	s.respondTimesheet(w, r, http.StatusOK, ts)
}

func (s *Server) handleResolveRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	asOf, err := parseDate("date", q.Get("date"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	query := billing.Query{
		UserID:    strings.TrimSpace(q.Get("user_id")),
		ProjectID: strings.TrimSpace(q.Get("project_id")),
		ClientID:  strings.TrimSpace(q.Get("client_id")),
		Role:      strings.TrimSpace(q.Get("role")),
		AsOf:      asOf,
	}
	if query.UserID == "" {
		renderError(w, r, domain.Validationf("user_id", "is required"))
		return
	}

	rate, err := s.rates.Resolve(r.Context(), query)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, rate)
}

func (s *Server) handleListRates(w http.ResponseWriter, r *http.Request) {
	var scope *domain.RateScope
	if kind := strings.TrimSpace(r.URL.Query().Get("scope")); kind != "" {
		scope = &domain.RateScope{
			Kind:     domain.ScopeKind(kind),
			EntityID: strings.TrimSpace(r.URL.Query().Get("entity_id")),
		}
	}
	rates, err := s.rates.List(r.Context(), scope)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, rates)
}

func (s *Server) handleUpsertRate(w http.ResponseWriter, r *http.Request) {
	req := &rateRequest{}
	if err := bind(r, req); err != nil {
		renderError(w, r, err)
		return
	}
	rate, err := s.rates.Upsert(r.Context(), req.rate)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, rate)
}

func (s *Server) handleDeleteRate(w http.ResponseWriter, r *http.Request) {
	if err := s.rates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.invoices.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("client_id")))
	if err != nil {
		renderError(w, r, err)
		return
	}
	views := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, s.invoiceView(inv))
	}
	render.JSON(w, r, views)
}

func (s *Server) handleGenerateInvoice(w http.ResponseWriter, r *http.Request) {
	req := &generateInvoiceRequest{}
	if err := bind(r, req); err != nil {
		renderError(w, r, err)
		return
	}
	inv, err := s.invoices.Generate(r.Context(), actor(r), req.ClientID, req.period)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, s.invoiceView(inv))
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, s.invoiceView(inv))
}

func (s *Server) respondInvoice(w http.ResponseWriter, r *http.Request, inv *domain.Invoice, err error) {
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, s.invoiceView(inv))
}

func (s *Server) handleSubmitInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.SubmitForApproval(r.Context(), actor(r), chi.URLParam(r, "id"))
	s.respondInvoice(w, r, inv, err)
}

func (s *Server) handleInvoiceDecision(w http.ResponseWriter, r *http.Request) {
	req := &decisionRequest{}
	if err := bind(r, req); err != nil {
		renderError(w, r, err)
		return
	}
	inv, err := s.invoices.Decide(r.Context(), actor(r), chi.URLParam(r, "id"), req.Action, req.Reason)
	s.respondInvoice(w, r, inv, err)
}

func (s *Server) handleSendInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.MarkSent(r.Context(), actor(r), chi.URLParam(r, "id"))
	s.respondInvoice(w, r, inv, err)
}

func (s *Server) handlePayInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.MarkPaid(r.Context(), actor(r), chi.URLParam(r, "id"))
	s.respondInvoice(w, r, inv, err)
}

func (s *Server) handleCancelInvoice(w http.ResponseWriter, r *http.Request) {
	req := &reasonRequest{}
	if hasBody(r) {
		if err := bind(r, req); err != nil {
			renderError(w, r, err)
			return
		}
	}
	inv, err := s.invoices.Cancel(r.Context(), actor(r), chi.URLParam(r, "id"), req.Reason)
	s.respondInvoice(w, r, inv, err)
}
