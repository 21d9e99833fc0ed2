package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Provider is the part of the payment processor the application uses
type Provider interface {
	// CreateCustomer registers a customer and returns its ID
	CreateCustomer(ctx context.Context, email string) (string, error)
	// CreateCheckoutSession starts a one-off payment for priceID and returns
	// the URL the customer should be sent to
	CreateCheckoutSession(ctx context.Context, customerID, priceID string) (string, error)
	// SessionPriceID returns the price bought in a checkout session
	SessionPriceID(ctx context.Context, sessionID string) (string, error)
}

type Stripe struct {
	sc      *client.API
	baseURL string
}

// NewStripe builds a client for the given secret key. baseURL is where
// customers are sent back to after a checkout.
func NewStripe(secretKey, baseURL string) *Stripe {
	sc := &client.API{}
	sc.Init(secretKey, nil)

	return &Stripe{
		sc:      sc,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *Stripe) CreateCustomer(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(strings.ToLower(email)),
	}
	params.Context = ctx

	c, err := s.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer, %w", err)
	}

	return c.ID, nil
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, customerID, priceID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.baseURL + "/dashboard/?success=true"),
		CancelURL:  stripe.String(s.baseURL + "/dashboard/?canceled=true"),
	}
	params.Context = ctx

	session, err := s.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session, %w", err)
	}

	return session.URL, nil
}

func (s *Stripe) SessionPriceID(ctx context.Context, sessionID string) (string, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")

	session, err := s.sc.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve checkout session, %w", err)
	}

	if session.LineItems == nil || len(session.LineItems.Data) == 0 {
		return "", nil
	}

	price := session.LineItems.Data[0].Price
	if price == nil {
		return "", nil
	}

	return price.ID, nil
}

// VerifyWebhook checks the Stripe-Signature header of a webhook delivery and
// decodes the event
func VerifyWebhook(payload []byte, header, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
