package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Page selects a window of a listing.
type Page struct {
	Offset int
	Limit  int
}

// ClientRepository defines the interface for client-related database operations
type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id string) (*models.Client, error)
	GetByEmail(ctx context.Context, email string) (*models.Client, error)
	Update(ctx context.Context, client *models.Client) error
	SetStripeCustomerID(ctx context.Context, id, customerID string) error
	TransitionStatus(ctx context.Context, id string, to models.ClientStatus) (models.TransitionResult, models.ClientStatus, error)
	MarkTrialPaid(ctx context.Context, id string, paidAt time.Time) (models.TransitionResult, error)
	List(ctx context.Context, page Page, status string) ([]models.Client, error)
	Count(ctx context.Context, status string) (int64, error)
}

// SessionRepository defines the interface for coaching session operations
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByClient(ctx context.Context, clientID string) ([]models.Session, error)
	Complete(ctx context.Context, id, summary string, at time.Time) (models.TransitionResult, error)
	Cancel(ctx context.Context, id string) (models.TransitionResult, error)
	List(ctx context.Context, page Page) ([]models.Session, error)
	Count(ctx context.Context) (int64, error)
}

// ApplicationRepository defines the interface for continuation application operations
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.ContinuationApplication) error
	GetByID(ctx context.Context, id string) (*models.ContinuationApplication, error)
	SetCheckoutSession(ctx context.Context, id, checkoutSessionID string) error
	Decide(ctx context.Context, id string, to models.ApplicationStatus, at time.Time) (models.TransitionResult, models.ApplicationStatus, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (models.TransitionResult, error)
	List(ctx context.Context, page Page, status string) ([]models.ContinuationApplication, error)
	Count(ctx context.Context, status string) (int64, error)
}

// EmailHistoryRepository defines the interface for the delivery audit trail
type EmailHistoryRepository interface {
	Create(ctx context.Context, record *models.EmailHistory) error
	List(ctx context.Context, page Page, filter EmailHistoryFilter) ([]models.EmailHistory, error)
	Count(ctx context.Context, filter EmailHistoryFilter) (int64, error)
}

type EmailHistoryFilter struct {
	ClientID  string
	SessionID string
	Status    string
}

// PaymentRepository defines the interface for reading and writing ledger rows
type PaymentRepository interface {
	CreatePayment(ctx context.Context, tx *models.PaymentTransaction) error
	CreateTrialPayment(ctx context.Context, tx *models.TrialPaymentTransaction) error
	ListPayments(ctx context.Context, page Page) ([]models.PaymentTransaction, error)
	ListTrialPayments(ctx context.Context, page Page) ([]models.TrialPaymentTransaction, error)
	CountPayments(ctx context.Context) (int64, int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Client       ClientRepository
	Session      SessionRepository
	Application  ApplicationRepository
	EmailHistory EmailHistoryRepository
	Payment      PaymentRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Client:       NewClientRepository(db),
		Session:      NewSessionRepository(db),
		Application:  NewApplicationRepository(db),
		EmailHistory: NewEmailHistoryRepository(db),
		Payment:      NewPaymentRepository(db),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func paginate(db *gorm.DB, page Page) *gorm.DB {
	if page.Limit <= 0 || page.Limit > 200 {
		page.Limit = 50
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	return db.Offset(page.Offset).Limit(page.Limit)
}
