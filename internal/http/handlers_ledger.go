package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/services"
)

type actionFunc func(ctx context.Context, data json.RawMessage) (core.Dataset, error)

type (
	idRequest struct {
		ID string `json:"id"`
	}

	rentPaymentRequest struct {
		ID       string  `json:"id"`
		RenterID string  `json:"renterId"`
		Amount   float64 `json:"amount"`
		Month    string  `json:"month"`
	}

	payoutRequest struct {
		ID             string  `json:"id"`
		FamilyMemberID string  `json:"familyMemberId"`
		Amount         float64 `json:"amount"`
		Month          string  `json:"month"`
		Details        string  `json:"details"`
	}

	initiationRequest struct {
		Date core.Date `json:"date"`
	}
)

// decodeInto returns an actionFunc that decodes the payload into In before
// calling fn.
func decodeInto[In any](fn func(context.Context, In) (core.Dataset, error)) actionFunc {
	return func(ctx context.Context, data json.RawMessage) (core.Dataset, error) {
		var in In
		if err := decodeData(data, &in); err != nil {
			return core.Dataset{}, err
		}
		return fn(ctx, in)
	}
}

func byID(fn func(context.Context, string) (core.Dataset, error)) actionFunc {
	return decodeInto(func(ctx context.Context, in idRequest) (core.Dataset, error) {
		return fn(ctx, sanitizeInput(in.ID))
	})
}

// ledgerActions maps every API action to its service call.
func (s *Server) ledgerActions() map[string]actionFunc {
	l := s.ledger
	return map[string]actionFunc{
		services.ActionAddRoom:    decodeInto(l.AddRoom),
		services.ActionUpdateRoom: decodeInto(l.UpdateRoom),
		services.ActionDeleteRoom: byID(l.DeleteRoom),

		services.ActionAddRenter: decodeInto(func(ctx context.Context, in services.RenterInput) (core.Dataset, error) {
			in.Name = sanitizeInput(in.Name)
			return l.AddRenter(ctx, in)
		}),
		services.ActionUpdateRenter: decodeInto(func(ctx context.Context, in services.RenterInput) (core.Dataset, error) {
			in.Name = sanitizeInput(in.Name)
			return l.UpdateRenter(ctx, in)
		}),
		services.ActionArchiveRenter: byID(l.ArchiveRenter),
		services.ActionDeleteRenter:  byID(l.DeleteRenter),

		services.ActionAddRentPayment: decodeInto(func(ctx context.Context, in rentPaymentRequest) (core.Dataset, error) {
			month, err := parseOptionalMonth(in.Month, s.now())
			if err != nil {
				return core.Dataset{}, err
			}
			return l.AddRentPayment(ctx, services.RentPaymentInput{ID: in.ID, RenterID: in.RenterID, Amount: in.Amount, Month: month})
		}),
		services.ActionUpdateRentPayment: decodeInto(func(ctx context.Context, in rentPaymentRequest) (core.Dataset, error) {
			return l.UpdateRentPayment(ctx, services.RentPaymentInput{ID: in.ID, RenterID: in.RenterID, Amount: in.Amount})
		}),
		services.ActionDeleteRentPayment: byID(l.DeleteRentPayment),

		services.ActionAddFamilyMember: decodeInto(func(ctx context.Context, in services.FamilyMemberInput) (core.Dataset, error) {
			in.Name = sanitizeInput(in.Name)
			return l.AddFamilyMember(ctx, in)
		}),
		services.ActionUpdateFamilyMember: decodeInto(func(ctx context.Context, in services.FamilyMemberInput) (core.Dataset, error) {
			in.Name = sanitizeInput(in.Name)
			return l.UpdateFamilyMember(ctx, in)
		}),
		services.ActionDeleteFamilyMember: byID(l.DeleteFamilyMember),

		services.ActionAddPayout: decodeInto(func(ctx context.Context, in payoutRequest) (core.Dataset, error) {
			month, err := parseOptionalMonth(in.Month, s.now())
			if err != nil {
				return core.Dataset{}, err
			}
			return l.AddPayout(ctx, services.PayoutInput{
				ID: in.ID, FamilyMemberID: in.FamilyMemberID, Amount: in.Amount,
				Month: month, Details: sanitizeInput(in.Details),
			})
		}),
		services.ActionUpdatePayout: decodeInto(func(ctx context.Context, in payoutRequest) (core.Dataset, error) {
			return l.UpdatePayout(ctx, services.PayoutInput{
				ID: in.ID, FamilyMemberID: in.FamilyMemberID, Amount: in.Amount, Details: sanitizeInput(in.Details),
			})
		}),
		services.ActionDeletePayout: byID(l.DeletePayout),

		services.ActionAddUtilityBill:    decodeInto(l.AddUtilityBill),
		services.ActionUpdateUtilityBill: decodeInto(l.UpdateUtilityBill),
		services.ActionDeleteUtilityBill: byID(l.DeleteUtilityBill),

		services.ActionAddExpense: decodeInto(func(ctx context.Context, in core.Expense) (core.Dataset, error) {
			in.Details = sanitizeInput(in.Details)
			return l.AddExpense(ctx, in)
		}),
		services.ActionUpdateExpense: decodeInto(func(ctx context.Context, in core.Expense) (core.Dataset, error) {
			in.Details = sanitizeInput(in.Details)
			return l.UpdateExpense(ctx, in)
		}),
		services.ActionDeleteExpense: byID(l.DeleteExpense),

		services.ActionUpdateInitiationDate: decodeInto(func(ctx context.Context, in initiationRequest) (core.Dataset, error) {
			return l.UpdateInitiationDate(ctx, in.Date)
		}),
		services.ActionClearAllData: func(ctx context.Context, _ json.RawMessage) (core.Dataset, error) {
			return l.ClearAllData(ctx)
		},
	}
}

// Actions lists the accepted action names, sorted.
func (s *Server) Actions() []string {
	names := make([]string, 0, len(s.actions))
	for name := range s.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// handleLedger serves GET (full dataset) and POST (one action).
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSync(w, r)
	case http.MethodPost:
		s.handleAction(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ds, err := s.ledger.Sync(r.Context())
	if err != nil {
		s.writeError(w, r, "Failed to load dataset", err, log.OpSync)
		return
	}
	SuccessResponse(ds).Write(w)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := DecodeJSON(w, r, s.maxBodyBytes, &req); err != nil {
		s.writeError(w, r, "Invalid ledger request", err, log.OpValidate)
		return
	}

	action, ok := s.actions[req.Action]
	if !ok {
		err := fmt.Errorf("%w: unknown action %q", errBadRequest, req.Action)
		s.writeError(w, r, "Unknown ledger action", err, log.OpValidate)
		return
	}

	ds, err := action(r.Context(), req.Data)
	if err != nil {
		s.writeError(w, r, "Ledger action failed", err, req.Action)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentLedger).
		InfoContext(r.Context(), "Ledger action applied", log.FieldAction, req.Action)
	SuccessResponse(ds).Write(w)
}
