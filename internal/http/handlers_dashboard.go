package http

import (
	"context"
	"net/http"

	"hisab/internal/core"
	"hisab/internal/log"
)

// monthView adapts a month-parameterized service call into a GET handler.
func monthView[T any](s *Server, name string, fn func(context.Context, core.Date) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp := RequireMethod(r, http.MethodGet); resp != nil {
			resp.Write(w)
			return
		}

		month, err := ParseMonthParam(r, s.now())
		if err != nil {
			s.writeError(w, r, "Invalid month parameter", err, log.OpValidate)
			return
		}

		view, err := fn(r.Context(), month)
		if err != nil {
			s.writeError(w, r, "Failed to compute "+name, err, log.OpRead)
			return
		}
		SuccessResponse(view).Write(w)
	}
}

func (s *Server) handleDashboard() http.HandlerFunc {
	return monthView(s, "dashboard", s.dashboard.Dashboard)
}

func (s *Server) handleBalances() http.HandlerFunc {
	return monthView(s, "balances", s.dashboard.Balances)
}

func (s *Server) handleAllTime() http.HandlerFunc {
	return monthView(s, "all-time summary", s.dashboard.AllTime)
}

func (s *Server) handleRentStatus() http.HandlerFunc {
	return monthView(s, "rent status", s.dashboard.RentStatus)
}
