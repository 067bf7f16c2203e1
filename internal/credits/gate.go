// Package credits fronts the user credit ledger. Every image generation is
// gated on a positive balance before any provider work starts and debited
// only after the provider succeeds.
package credits

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"imagechat-backend/internal/models"
	"imagechat-backend/internal/supabase"
)

// SignupGrant is the number of free credits a new account starts with.
const SignupGrant = 3

// GenerationCost is the price of one image generation.
const GenerationCost = 1

// ErrInsufficientCredits is returned by Check when the balance cannot cover
// a generation. Callers surface it as HTTP 402.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Ledger is the persistence surface the gate needs. *supabase.DatabaseClient
// satisfies it.
type Ledger interface {
	EnsureCreditAccount(userID uuid.UUID, signupGrant int) error
	GetCreditBalance(userID uuid.UUID) (*models.UserCredit, error)
	AdjustCreditBalance(userID uuid.UUID, amount int, txType, description, referenceID string) (*models.UserCredit, error)
	ListCreditTransactions(userID uuid.UUID) ([]models.CreditTransaction, error)
}

type Gate struct {
	ledger Ledger
}

func NewGate(ledger Ledger) *Gate {
	return &Gate{ledger: ledger}
}

// Balance returns the user's credit account, creating it with the signup
// grant on first sight.
func (g *Gate) Balance(userID uuid.UUID) (*models.UserCredit, error) {
	if err := g.ledger.EnsureCreditAccount(userID, SignupGrant); err != nil {
		return nil, fmt.Errorf("failed to ensure credit account: %w", err)
	}
	return g.ledger.GetCreditBalance(userID)
}

// Check verifies the balance covers one generation without spending anything.
// On a short balance it returns ErrInsufficientCredits along with the current
// balance so callers can report it.
func (g *Gate) Check(userID uuid.UUID) (int, error) {
	credit, err := g.Balance(userID)
	if err != nil {
		return 0, err
	}
	if credit.CurrentBalance < GenerationCost {
		return credit.CurrentBalance, ErrInsufficientCredits
	}
	return credit.CurrentBalance, nil
}

// Debit spends one generation credit and records the audit row. referenceID
// ties the transaction to the task that earned it.
func (g *Gate) Debit(userID uuid.UUID, referenceID string) (*models.UserCredit, error) {
	credit, err := g.ledger.AdjustCreditBalance(
		userID, -GenerationCost, models.TransactionGeneration, "image generation", referenceID,
	)
	if err != nil {
		if errors.Is(err, supabase.ErrInsufficientBalance) {
			return nil, ErrInsufficientCredits
		}
		return nil, err
	}
	return credit, nil
}

// TopUp credits an account by an arbitrary positive amount.
func (g *Gate) TopUp(userID uuid.UUID, amount int, description string) (*models.UserCredit, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("top-up amount must be positive, got %d", amount)
	}
	if err := g.ledger.EnsureCreditAccount(userID, SignupGrant); err != nil {
		return nil, fmt.Errorf("failed to ensure credit account: %w", err)
	}
	if description == "" {
		description = "manual top-up"
	}
	return g.ledger.AdjustCreditBalance(userID, amount, models.TransactionAdminTopup, description, "")
}

// Transactions returns the user's audit trail, newest first.
func (g *Gate) Transactions(userID uuid.UUID) ([]models.CreditTransaction, error) {
	return g.ledger.ListCreditTransactions(userID)
}
