package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dutyfree/internal/dto"
	"dutyfree/internal/model"
	"dutyfree/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RegisterService manages register sessions and is the default
// CashRegisterSession of the sale workflow.
type RegisterService interface {
	Open(ctx context.Context, cashierID uuid.UUID, req dto.OpenRegisterRequest) (*dto.RegisterSessionResponse, error)
	Close(ctx context.Context, sessionID uuid.UUID, req dto.CloseRegisterRequest) (*dto.RegisterSessionResponse, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*dto.RegisterSessionResponse, error)
	IsOpen(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

type registerService struct {
	repo     repository.RegisterRepository
	payments repository.PaymentRepository
}

func NewRegisterService(repo repository.RegisterRepository, payments repository.PaymentRepository) RegisterService {
	return &registerService{repo: repo, payments: payments}
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (s *registerService) Open(ctx context.Context, cashierID uuid.UUID, req dto.OpenRegisterRequest) (*dto.RegisterSessionResponse, error) {
	if req.OpeningFloat.IsNegative() {
		return nil, fmt.Errorf("%w: opening float must not be negative", ErrInvalidAmount)
	}
	// One open session per register number
	if existing, err := s.repo.FindOpenByRegister(ctx, req.RegisterNumber); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: register %d already has an open session", ErrInvalidState, req.RegisterNumber)
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	session := &model.RegisterSession{
		RegisterNumber: req.RegisterNumber,
		CashierID:      cashierID,
		OpeningFloat:   roundMoney(req.OpeningFloat),
		Status:         model.RegisterStatusOpen,
		OpenedAt:       time.Now().UTC(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	log.Info().Str("session_id", session.ID.String()).Int("register", req.RegisterNumber).Msg("register opened")

	resp := sessionToResponse(session, nil)
	return &resp, nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// Blind count: the variance is computed only after the declaration arrives.

func (s *registerService) Close(ctx context.Context, sessionID uuid.UUID, req dto.CloseRegisterRequest) (*dto.RegisterSessionResponse, error) {
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.RegisterStatusOpen {
		return nil, fmt.Errorf("%w: register session %s is already closed", ErrInvalidState, sessionID)
	}
	if req.DeclaredCash.IsNegative() {
		return nil, fmt.Errorf("%w: declared cash must not be negative", ErrInvalidAmount)
	}

	takings, err := s.payments.SumByMethodForRegister(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	expected := session.OpeningFloat.Add(takings["cash"])
	declared := roundMoney(req.DeclaredCash)
	variance := declared.Sub(expected)
	var pct decimal.Decimal
	if !expected.IsZero() {
		pct = variance.Div(expected).Mul(hundred).Round(2)
	}
	class := classifyVariance(pct)

	if class == varianceCritical && (req.Notes == nil || *req.Notes == "") {
		return nil, fmt.Errorf("%w: a critical cash variance needs closing notes", ErrInvalidInput)
	}

	closedAt := time.Now().UTC()
	session.ExpectedCash = &expected
	session.DeclaredCash = &declared
	session.Variance = &variance
	session.VariancePct = &pct
	session.VarianceClass = &class
	session.Status = model.RegisterStatusClosed
	session.Notes = req.Notes
	session.ClosedAt = &closedAt

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	log.Info().
		Str("session_id", sessionID.String()).
		Str("variance", variance.StringFixed(2)).
		Str("class", class).
		Msg("register closed")

	resp := sessionToResponse(session, takings)
	return &resp, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *registerService) Get(ctx context.Context, sessionID uuid.UUID) (*dto.RegisterSessionResponse, error) {
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	resp := sessionToResponse(session, nil)
	return &resp, nil
}

// IsOpen reports false for unknown sessions.
func (s *registerService) IsOpen(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return session.Status == model.RegisterStatusOpen, nil
}

func (s *registerService) find(ctx context.Context, id uuid.UUID) (*model.RegisterSession, error) {
	session, err := s.repo.FindSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("register_session", id)
		}
		return nil, err
	}
	return session, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

const (
	varianceNormal   = "normal"
	varianceWarning  = "warning"
	varianceCritical = "critical"
)

// classifyVariance: normal when |pct| <= 1, warning when <= 5, critical above.
func classifyVariance(pct decimal.Decimal) string {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return varianceNormal
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return varianceWarning
	default:
		return varianceCritical
	}
}

func sessionToResponse(s *model.RegisterSession, takings map[string]decimal.Decimal) dto.RegisterSessionResponse {
	resp := dto.RegisterSessionResponse{
		ID:              s.ID.String(),
		RegisterNumber:  s.RegisterNumber,
		CashierID:       s.CashierID.String(),
		Status:          s.Status,
		OpeningFloat:    s.OpeningFloat,
		ExpectedCash:    s.ExpectedCash,
		DeclaredCash:    s.DeclaredCash,
		TakingsByMethod: takings,
		Notes:           s.Notes,
		OpenedAt:        s.OpenedAt.Format(timeLayout),
		ClosedAt:        formatTimePtr(s.ClosedAt),
	}
	if s.Variance != nil && s.VariancePct != nil && s.VarianceClass != nil {
		resp.Variance = &dto.VarianceResponse{
			Amount:         *s.Variance,
			Percentage:     *s.VariancePct,
			Classification: *s.VarianceClass,
		}
	}
	return resp
}
