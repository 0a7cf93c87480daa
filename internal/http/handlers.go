package http

import (
	"net/http"
	"strings"

	"github.com/zivstay/Homis-sub000/internal/core"
	"github.com/zivstay/Homis-sub000/internal/services"
)

// handleBoards dispatches board creation and member board listing.
func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateBoard(w, r)
	case http.MethodGet:
		s.handleListBoards(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req createBoardRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	board, err := s.engine.CreateBoard(r.Context(), req.Name, req.Currency, req.Members)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusCreated, toBoardResponse(board))
}

func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	member := strings.TrimSpace(r.URL.Query().Get("member"))
	if member == "" {
		badRequest(w, errMissingParam("member"))
		return
	}

	boards, err := s.engine.BoardsForMember(r.Context(), member)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]boardResponse, 0, len(boards))
	for _, b := range boards {
		out = append(out, toBoardResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

type createExpenseResponse struct {
	Expense     expenseResponse      `json:"expense"`
	Obligations []obligationResponse `json:"obligations"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req createExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err)
		return
	}

	expense, obligations, err := s.engine.RecordExpense(r.Context(), services.RecordExpenseInput{
		BoardID:      req.BoardID,
		PayerID:      req.PayerID,
		Description:  req.Description,
		Amount:       core.Money{Cents: req.AmountCents},
		Category:     req.Category,
		Participants: req.Participants,
		Date:         date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusCreated, createExpenseResponse{
		Expense:     toExpenseResponse(expense),
		Obligations: toObligationResponses(obligations),
	})
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req markPaidRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if strings.TrimSpace(req.ObligationID) == "" {
		badRequest(w, errMissingParam("obligation_id"))
		return
	}

	obligation, err := s.engine.MarkObligationPaid(r.Context(), req.ObligationID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, toObligationResponse(obligation))
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	// The header form wins over the body field when both are present.
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	result, err := s.engine.SettlePayment(r.Context(), services.SettleInput{
		BoardIDs:       req.BoardIDs,
		DebtorID:       req.DebtorID,
		CreditorID:     req.CreditorID,
		Amount:         core.Money{Cents: req.AmountCents},
		IdempotencyKey: key,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	} else {
		s.invalidateSummaries()
	}
	writeJSON(w, status, toSettleResponse(result))
}

func (s *Server) handleDebtSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	caller := strings.TrimSpace(r.URL.Query().Get("caller"))
	if caller == "" {
		badRequest(w, errMissingParam("caller"))
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	boardIDs := parseBoardIDs(r)

	key := summaryCacheKey(caller, boardIDs, r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if cached, ok := s.debtCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toDebtSummaryResponse(cached))
		return
	}

	summary, err := s.aggregator.DebtSummary(r.Context(), caller, boardIDs, window)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.debtCache.Set(key, summary)
	writeJSON(w, http.StatusOK, toDebtSummaryResponse(summary))
}

func (s *Server) handleExpenseSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	caller := strings.TrimSpace(r.URL.Query().Get("caller"))
	if caller == "" {
		badRequest(w, errMissingParam("caller"))
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	boardIDs := parseBoardIDs(r)

	key := summaryCacheKey(caller, boardIDs, r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if cached, ok := s.expenseCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toExpenseSummaryResponse(cached))
		return
	}

	summary, err := s.aggregator.ExpenseSummary(r.Context(), caller, boardIDs, window)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.expenseCache.Set(key, summary)
	writeJSON(w, http.StatusOK, toExpenseSummaryResponse(summary))
}

func summaryCacheKey(caller string, boardIDs []string, start, end string) string {
	return caller + "|" + strings.Join(boardIDs, ",") + "|" + start + "|" + end
}
