package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var ErrProviderDisabled = errors.New("payment provider is not configured")

// PaymentProvider creates and looks up hosted payments.
type PaymentProvider interface {
	CreateCustomer(ctx context.Context, email, name string, meta Metadata) (string, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	RetrieveCheckout(ctx context.Context, id string) (*Checkout, error)
}

// StripeProvider implements PaymentProvider over the Stripe API.
type StripeProvider struct {
	api      *client.API
	currency string
}

func NewStripeProvider(secretKey, currency string) *StripeProvider {
	if currency == "" {
		currency = string(stripe.CurrencyJPY)
	}
	return &StripeProvider{api: client.New(secretKey, nil), currency: strings.ToLower(currency)}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email, name string, meta Metadata) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	for k, v := range meta.Map() {
		params.AddMetadata(k, v)
	}
	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	currency := req.Currency
	if currency == "" {
		currency = p.currency
	}
	metadata := req.Metadata.Map()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.ProductName),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
		Metadata: metadata,
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx

	cs, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return checkoutFromStripe(cs), nil
}

func (p *StripeProvider) RetrieveCheckout(ctx context.Context, id string) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, err
	}
	return checkoutFromStripe(cs), nil
}

// DisabledProvider rejects every call. Used when no Stripe key is configured.
type DisabledProvider struct{}

func (DisabledProvider) CreateCustomer(context.Context, string, string, Metadata) (string, error) {
	return "", ErrProviderDisabled
}

func (DisabledProvider) CreateCheckout(context.Context, CheckoutRequest) (*Checkout, error) {
	return nil, ErrProviderDisabled
}

func (DisabledProvider) RetrieveCheckout(context.Context, string) (*Checkout, error) {
	return nil, ErrProviderDisabled
}
