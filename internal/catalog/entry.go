package catalog

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
	"golang.org/x/text/currency"

	"github.com/roach88/entitle/internal/model"
)

// entry mirrors #Product in schema.cue.
type entry struct {
	DisplayName    string             `json:"displayName"`
	Description    string             `json:"description"`
	Price          string             `json:"price"`
	CurrencyCode   string             `json:"currencyCode"`
	PriceFormatted string             `json:"priceFormatted"`
	Type           string             `json:"type"`
	Subscription   *subscriptionEntry `json:"subscription"`
}

type subscriptionEntry struct {
	Group             string       `json:"group"`
	Period            string       `json:"period"`
	IntroductoryOffer *offerEntry  `json:"introductoryOffer"`
	PromotionalOffers []offerEntry `json:"promotionalOffers"`
}

type offerEntry struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Price       string `json:"price"`
	Period      string `json:"period"`
	PeriodCount int    `json:"periodCount"`
	PaymentMode string `json:"paymentMode"`
}

var decimalCtx = apd.BaseContext.WithPrecision(34)

func (e entry) product(id string) (model.Product, error) {
	unit, err := currency.ParseISO(e.CurrencyCode)
	if err != nil {
		return model.Product{}, fmt.Errorf("currency %q: %w", e.CurrencyCode, err)
	}
	scale, _ := currency.Standard.Rounding(unit)

	price, err := minorUnits(e.Price, scale)
	if err != nil {
		return model.Product{}, err
	}

	typ := model.ProductType(e.Type)
	if typ == model.ProductAutoRenewableSubscription && e.Subscription == nil {
		return model.Product{}, fmt.Errorf("auto-renewable subscription needs a subscription block")
	}
	if !typ.IsSubscription() && e.Subscription != nil {
		return model.Product{}, fmt.Errorf("%s product cannot carry a subscription block", typ)
	}

	p := model.Product{
		ID:             id,
		DisplayName:    e.DisplayName,
		Description:    e.Description,
		Price:          price,
		PriceFormatted: e.PriceFormatted,
		CurrencyCode:   unit.String(),
		Type:           typ,
	}
	if p.PriceFormatted == "" {
		p.PriceFormatted = unit.String() + " " + price.String()
	}

	if s := e.Subscription; s != nil {
		info := &model.SubscriptionInfo{GroupID: s.Group, Period: s.Period}
		if s.IntroductoryOffer != nil {
			o, err := s.IntroductoryOffer.offer(scale)
			if err != nil {
				return model.Product{}, err
			}
			info.IntroductoryOffer = &o
		}
		for _, po := range s.PromotionalOffers {
			o, err := po.offer(scale)
			if err != nil {
				return model.Product{}, err
			}
			info.PromotionalOffers = append(info.PromotionalOffers, o)
		}
		p.SubscriptionInfo = info
	}
	return p, nil
}

func (o offerEntry) offer(scale int) (model.SubscriptionOffer, error) {
	price, err := minorUnits(o.Price, scale)
	if err != nil {
		return model.SubscriptionOffer{}, fmt.Errorf("offer %q: %w", o.ID, err)
	}
	return model.SubscriptionOffer{
		ID:          o.ID,
		Type:        model.OfferType(o.Type),
		Price:       price,
		Period:      o.Period,
		PeriodCount: o.PeriodCount,
		PaymentMode: o.PaymentMode,
	}, nil
}

// minorUnits parses s and fixes its exponent to the currency scale. A price
// finer than the currency's minor unit is rejected rather than rounded.
func minorUnits(s string, scale int) (apd.Decimal, error) {
	d, err := model.ParsePrice(s)
	if err != nil {
		return apd.Decimal{}, fmt.Errorf("price %q: %w", s, err)
	}
	if d.Exponent < -int32(scale) {
		return apd.Decimal{}, fmt.Errorf("price %q has more than %d decimal places", s, scale)
	}

	var q apd.Decimal
	if _, err := decimalCtx.Quantize(&q, &d, -int32(scale)); err != nil {
		return apd.Decimal{}, fmt.Errorf("price %q: %w", s, err)
	}
	return q, nil
}
