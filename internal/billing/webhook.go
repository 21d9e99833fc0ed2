package billing

import (
	"clipper/api/internal/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const EventCheckoutCompleted = "checkout.session.completed"

// Result describes what applying a webhook event changed
type Result struct {
	Duplicate    bool
	UserID       string
	CreditsAdded int
}

// ApplyEvent credits the user behind a completed checkout. Every event is
// recorded under its Stripe ID in the same transaction as the top-up, so a
// redelivered event changes nothing. Events of other types, unknown prices
// and unknown customers are recorded and otherwise ignored.
func ApplyEvent(ctx context.Context, db *gorm.DB, p Provider, ev stripe.Event) (Result, error) {
	if ev.ID == "" {
		return Result{}, errors.New("event has no ID")
	}

	record := model.BillingEvent{
		ID:   ev.ID,
		Type: string(ev.Type),
	}

	if ev.Type == EventCheckoutCompleted {
		if ev.Data == nil {
			return Result{}, errors.New("event has no data")
		}

		var session stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
			return Result{}, fmt.Errorf("failed to decode checkout session, %w", err)
		}

		if session.Customer != nil {
			record.CustomerID = session.Customer.ID
		}

		priceID, err := p.SessionPriceID(ctx, session.ID)
		if err != nil {
			return Result{}, err
		}

		record.PriceID = priceID
		record.CreditsAdded = CreditsForPrice(priceID)
	}

	var res Result

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User

		if record.CreditsAdded > 0 {
			err := tx.
				Select("id").
				Where("stripe_customer_id = ?", record.CustomerID).
				First(&user).
				Error
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("failed to query user, %w", err)
				}

				zap.L().Warn("Payment for unknown customer",
					zap.String("event_id", ev.ID),
					zap.String("customer_id", record.CustomerID))
				record.CreditsAdded = 0
			}
		}

		created := tx.
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&record)
		if created.Error != nil {
			return fmt.Errorf("failed to record billing event, %w", created.Error)
		}

		if created.RowsAffected == 0 {
			res.Duplicate = true
			return nil
		}

		if record.CreditsAdded == 0 {
			return nil
		}

		err := tx.
			Model(&model.User{}).
			Where("id = ?", user.ID).
			Update("credits", gorm.Expr("credits + ?", record.CreditsAdded)).
			Error
		if err != nil {
			return fmt.Errorf("failed to add credits, %w", err)
		}

		res.UserID = user.ID
		res.CreditsAdded = record.CreditsAdded
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if record.PriceID != "" && CreditsForPrice(record.PriceID) == 0 && !res.Duplicate {
		zap.L().Info("Checkout didn't buy any credits", zap.String("event_id", ev.ID), zap.String("price_id", record.PriceID))
	}

	return res, nil
}
