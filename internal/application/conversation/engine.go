package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/otc-market/otc-market/internal/application/approval"
	"github.com/otc-market/otc-market/internal/application/ledger"
	"github.com/otc-market/otc-market/internal/application/pricing"
	"github.com/otc-market/otc-market/internal/domain/chat"
	"github.com/otc-market/otc-market/internal/domain/order"
	"github.com/otc-market/otc-market/internal/domain/request"
	"github.com/otc-market/otc-market/internal/domain/seller"
	"github.com/otc-market/otc-market/internal/domain/session"
	"github.com/otc-market/otc-market/internal/i18n"
)

// Callback payloads used by the engine's keyboards.
const (
	cbLangPrefix  = "lang:"
	cbMenuBuy     = "menu:buy"
	cbMenuReg     = "menu:register"
	cbMenuOrder   = "menu:create_order"
	cbMenuContact = "menu:contact"
	cbOrderPrefix = "order:"
	cbCTypePrefix = "ctype:"
	cbCancel      = "cancel"
)

const cancelCommand = "/cancel"

// Engine drives the per-user conversation state machine. Events for one
// user are processed strictly in arrival order; different users proceed
// concurrently and meet only inside the ledger.
type Engine struct {
	sessions     *session.Store
	ledger       *ledger.Ledger
	pricer       *pricing.Engine
	rates        *pricing.RateSource
	coordinator  *approval.Coordinator
	gateway      chat.Gateway
	adminID      int64
	adminContact string
	tier         pricing.TierConfig
	logger       zerolog.Logger

	handlers map[session.Step]func(ctx context.Context, sess session.Session, ev chat.Event) error

	lockMu    sync.Mutex
	userLocks map[int64]*sync.Mutex
}

func NewEngine(
	sessions *session.Store,
	l *ledger.Ledger,
	pricer *pricing.Engine,
	rates *pricing.RateSource,
	coordinator *approval.Coordinator,
	gateway chat.Gateway,
	adminID int64,
	adminContact string,
	tier pricing.TierConfig,
	logger zerolog.Logger,
) *Engine {
	e := &Engine{
		sessions:     sessions,
		ledger:       l,
		pricer:       pricer,
		rates:        rates,
		coordinator:  coordinator,
		gateway:      gateway,
		adminID:      adminID,
		adminContact: adminContact,
		tier:         tier,
		logger:       logger.With().Str("service", "conversation").Logger(),
		userLocks:    make(map[int64]*sync.Mutex),
	}
	e.handlers = map[session.Step]func(context.Context, session.Session, chat.Event) error{
		session.StepLanguageSelect:            e.handleLanguageSelect,
		session.StepMainMenu:                  e.handleMainMenu,
		session.StepBuyChooseOrder:            e.handleBuyChooseOrder,
		session.StepBuyEnterAmount:            e.handleBuyEnterAmount,
		session.StepBuyEnterPayout:            e.handleBuyEnterPayout,
		session.StepBuyAwaitEvidence:          e.handleBuyAwaitEvidence,
		session.StepRegEnterName:              e.handleRegEnterName,
		session.StepRegEnterContact:           e.handleRegEnterContact,
		session.StepRegEnterPayout:            e.handleRegEnterPayout,
		session.StepOrderEnterAmount:          e.handleOrderEnterAmount,
		session.StepOrderEnterRate:            e.handleOrderEnterRate,
		session.StepOrderEnterCommissionType:  e.handleOrderEnterCommissionType,
		session.StepOrderEnterCommissionValue: e.handleOrderEnterCommissionValue,
		session.StepOrderEnterPayout:          e.handleOrderEnterPayout,
	}
	return e
}

// HandleEvent processes one inbound chat event to completion.
func (e *Engine) HandleEvent(ctx context.Context, ev chat.Event) error {
	lock := e.userLock(ev.UserID)
	lock.Lock()
	defer lock.Unlock()

	if ev.UserID == e.adminID {
		if handled, err := e.handleAdminEvent(ctx, ev); handled {
			return err
		}
	}

	sess := e.sessions.Get(ev.UserID)

	if isCancel(ev) {
		return e.cancel(ctx, sess)
	}

	handler, ok := e.handlers[sess.Step]
	if !ok {
		return fmt.Errorf("no handler for step %s", sess.Step)
	}
	return handler(ctx, sess, ev)
}

// handleAdminEvent intercepts approval callbacks and the rate override
// command. Everything else falls through to the normal flow so the admin
// can use the marketplace too.
func (e *Engine) handleAdminEvent(ctx context.Context, ev chat.Event) (bool, error) {
	if ev.Kind == chat.KindButton {
		for _, prefix := range []string{
			approval.ActionApproveSeller, approval.ActionRejectSeller,
			approval.ActionApproveRequest, approval.ActionRejectRequest,
		} {
			if strings.HasPrefix(ev.Payload, prefix+":") {
				err := e.coordinator.HandleAction(ctx, ev.Payload)
				if errors.Is(err, request.ErrAlreadyProcessed) {
					e.send(ctx, ev.UserID, i18n.T("en", "already_processed"), nil)
					return true, nil
				}
				return true, err
			}
		}
	}
	if ev.Kind == chat.KindText && strings.HasPrefix(ev.Payload, "/rate") {
		arg := strings.TrimSpace(strings.TrimPrefix(ev.Payload, "/rate"))
		rate, err := decimal.NewFromString(arg)
		if err != nil || !rate.IsPositive() {
			e.send(ctx, ev.UserID, "Usage: /rate <positive number>", nil)
			return true, nil
		}
		e.rates.Set(rate)
		e.send(ctx, ev.UserID, "Rate updated to "+rate.String(), nil)
		return true, nil
	}
	return false, nil
}

// cancel aborts the in-progress flow, releasing any ledger hold before the
// cancellation is acknowledged.
func (e *Engine) cancel(ctx context.Context, sess session.Session) error {
	if sess.Draft.RequestID != uuid.Nil {
		if _, err := e.ledger.SettleBuyRequest(ctx, sess.Draft.RequestID, false); err != nil && !errors.Is(err, request.ErrAlreadyProcessed) {
			e.logger.Warn().Err(err).Int64("user", sess.UserID).Msg("cancel could not settle pending request")
			e.send(ctx, sess.UserID, i18n.T(sess.Lang, "failure"), nil)
			return err
		}
	} else if sess.Draft.ReservationID != uuid.Nil {
		if err := e.ledger.ReleaseReservation(ctx, sess.Draft.ReservationID); err != nil && !errors.Is(err, order.ErrUnknownReservation) {
			e.logger.Warn().Err(err).Int64("user", sess.UserID).Msg("cancel could not release reservation")
			e.send(ctx, sess.UserID, i18n.T(sess.Lang, "failure"), nil)
			return err
		}
	}
	e.sessions.Reset(sess.UserID)
	e.send(ctx, sess.UserID, i18n.T(sess.Lang, "cancelled"), nil)
	return e.sendMainMenu(ctx, sess.UserID, sess.Lang)
}

func (e *Engine) handleLanguageSelect(ctx context.Context, sess session.Session, ev chat.Event) error {
	if ev.Kind == chat.KindButton && strings.HasPrefix(ev.Payload, cbLangPrefix) {
		code := strings.TrimPrefix(ev.Payload, cbLangPrefix)
		for _, lang := range i18n.Languages {
			if lang.Code != code {
				continue
			}
			e.sessions.Update(sess.UserID, func(s *session.Session) {
				s.Lang = code
				s.Step = session.StepMainMenu
			})
			return e.sendMainMenu(ctx, sess.UserID, code)
		}
	}
	return e.sendLanguagePrompt(ctx, sess.UserID)
}

func (e *Engine) handleMainMenu(ctx context.Context, sess session.Session, ev chat.Event) error {
	if ev.Kind != chat.KindButton {
		return e.sendMainMenu(ctx, sess.UserID, sess.Lang)
	}
	switch ev.Payload {
	case cbMenuBuy:
		return e.startBuyFlow(ctx, sess)
	case cbMenuReg:
		e.sessions.Update(sess.UserID, func(s *session.Session) { s.Step = session.StepRegEnterName })
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_name"), nil)
	case cbMenuOrder:
		profile := e.ledger.GetSeller(sess.UserID)
		if profile == nil || !profile.Approved {
			e.send(ctx, sess.UserID, i18n.T(sess.Lang, "seller_not_approved"), nil)
			return e.sendMainMenu(ctx, sess.UserID, sess.Lang)
		}
		e.sessions.Update(sess.UserID, func(s *session.Session) { s.Step = session.StepOrderEnterAmount })
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_sell_amount"), nil)
	case cbMenuContact:
		e.send(ctx, sess.UserID, i18n.Tf(sess.Lang, "contact_admin", e.adminContact), nil)
		return e.sendMainMenu(ctx, sess.UserID, sess.Lang)
	default:
		return e.sendMainMenu(ctx, sess.UserID, sess.Lang)
	}
}

func (e *Engine) startBuyFlow(ctx context.Context, sess session.Session) error {
	active := e.ledger.ListActiveOrders()
	if len(active) == 0 {
		e.send(ctx, sess.UserID, i18n.T(sess.Lang, "no_orders"), nil)
		return e.sendMainMenu(ctx, sess.UserID, sess.Lang)
	}
	e.sessions.Update(sess.UserID, func(s *session.Session) { s.Step = session.StepBuyChooseOrder })
	return e.sendOrderListing(ctx, sess.UserID, sess.Lang, active)
}

func (e *Engine) handleBuyChooseOrder(ctx context.Context, sess session.Session, ev chat.Event) error {
	if ev.Kind == chat.KindButton && strings.HasPrefix(ev.Payload, cbOrderPrefix) {
		sellerID, err := strconv.ParseInt(strings.TrimPrefix(ev.Payload, cbOrderPrefix), 10, 64)
		if err == nil {
			if o := e.activeOrder(sellerID); o != nil {
				e.sessions.Update(sess.UserID, func(s *session.Session) {
					s.Draft.SellerID = sellerID
					s.Step = session.StepBuyEnterAmount
				})
				return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_buy_amount"), nil)
			}
		}
	}
	e.send(ctx, sess.UserID, i18n.T(sess.Lang, "invalid_selection"), nil)
	return e.sendOrderListing(ctx, sess.UserID, sess.Lang, e.ledger.ListActiveOrders())
}

func (e *Engine) handleBuyEnterAmount(ctx context.Context, sess session.Session, ev chat.Event) error {
	amount, ok := parsePositiveDecimal(ev)
	if !ok {
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "invalid_amount"), nil)
	}

	o := e.activeOrder(sess.Draft.SellerID)
	if o == nil {
		return e.backToListing(ctx, sess)
	}
	if amount.GreaterThan(o.AmountAvailable) {
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "insufficient_liquidity"), nil)
	}

	commission, err := e.pricer.ComputeCommission(amount, o.Commission)
	if err != nil {
		e.logger.Error().Err(err).Int64("seller", o.SellerID).Msg("commission computation failed")
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "failure"), nil)
	}
	total := e.pricer.ComputeTotal(amount, commission)
	rate := e.rates.EffectiveRate(o.Rate)
	settlement := e.pricer.Convert(total, rate)

	res, err := e.ledger.ReserveAmount(ctx, o.SellerID, sess.UserID, amount)
	if errors.Is(err, order.ErrInsufficientLiquidity) || errors.Is(err, order.ErrUnknownOrder) {
		// Lost the race against another buyer; offer the updated listing.
		return e.backToListing(ctx, sess)
	}
	if err != nil {
		e.logger.Error().Err(err).Int64("user", sess.UserID).Msg("reservation failed")
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "failure"), nil)
	}

	e.sessions.Update(sess.UserID, func(s *session.Session) {
		s.Draft.Amount = amount
		s.Draft.Commission = commission
		s.Draft.Total = total
		s.Draft.TotalSettlement = settlement
		s.Draft.Rate = rate
		s.Draft.ReservationID = res.ReservationID
		s.Step = session.StepBuyEnterPayout
	})
	return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_buy_payout"), nil)
}

func (e *Engine) backToListing(ctx context.Context, sess session.Session) error {
	e.sessions.Update(sess.UserID, func(s *session.Session) {
		s.Draft = session.Draft{}
		s.Step = session.StepBuyChooseOrder
	})
	e.send(ctx, sess.UserID, i18n.T(sess.Lang, "order_gone"), nil)
	active := e.ledger.ListActiveOrders()
	if len(active) == 0 {
		e.sessions.Reset(sess.UserID)
		e.send(ctx, sess.UserID, i18n.T(sess.Lang, "no_orders"), nil)
		return e.sendMainMenu(ctx, sess.UserID, sess.Lang)
	}
	return e.sendOrderListing(ctx, sess.UserID, sess.Lang, active)
}

func (e *Engine) handleBuyEnterPayout(ctx context.Context, sess session.Session, ev chat.Event) error {
	address := strings.TrimSpace(ev.Payload)
	if ev.Kind != chat.KindText || address == "" {
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_buy_payout"), nil)
	}

	req := &request.BuyRequest{
		BuyerID:         sess.UserID,
		SellerID:        sess.Draft.SellerID,
		ReservationID:   sess.Draft.ReservationID,
		Amount:          sess.Draft.Amount,
		Commission:      sess.Draft.Commission,
		Total:           sess.Draft.Total,
		TotalSettlement: sess.Draft.TotalSettlement,
		PayoutAddress:   address,
		Status:          request.StatusAwaitingEvidence,
	}
	if err := e.ledger.RecordBuyRequest(ctx, req); err != nil {
		if errors.Is(err, order.ErrUnknownReservation) {
			// The hold was displaced while the buyer was typing.
			return e.backToListing(ctx, sess)
		}
		e.logger.Error().Err(err).Int64("user", sess.UserID).Msg("recording buy request failed")
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "failure"), nil)
	}

	e.sessions.Update(sess.UserID, func(s *session.Session) {
		s.Draft.PayoutAccount = address
		s.Draft.RequestID = req.RequestID
		s.Step = session.StepBuyAwaitEvidence
	})

	e.send(ctx, sess.UserID, i18n.Tf(sess.Lang, "platform_fee",
		e.tier.FlatFee.String(), e.tier.Threshold.String(),
		e.tier.PctRate.Mul(decimal.NewFromInt(100)).String()), nil)
	return e.send(ctx, sess.UserID, i18n.Tf(sess.Lang, "payment_instructions",
		pricing.Round(sess.Draft.Amount).String(),
		pricing.Round(sess.Draft.Commission).String(),
		pricing.Round(sess.Draft.Total).String(),
		pricing.Round(sess.Draft.TotalSettlement).String(),
		sess.Draft.Rate.String()), nil)
}

func (e *Engine) handleBuyAwaitEvidence(ctx context.Context, sess session.Session, ev chat.Event) error {
	if ev.Kind != chat.KindPhoto {
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "need_screenshot"), nil)
	}

	if err := e.ledger.AttachEvidence(ctx, sess.Draft.RequestID, ev.Payload); err != nil {
		if errors.Is(err, request.ErrAlreadyProcessed) || errors.Is(err, request.ErrNotFound) {
			// The request was rejected underneath the buyer, for example by
			// a seller republish displacing the hold.
			return e.backToListing(ctx, sess)
		}
		e.logger.Error().Err(err).Int64("user", sess.UserID).Msg("attaching evidence failed")
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "failure"), nil)
	}
	req, err := e.ledger.AdvanceBuyRequestStatus(ctx, sess.Draft.RequestID, request.StatusPendingAdmin)
	if err != nil {
		e.logger.Error().Err(err).Int64("user", sess.UserID).Msg("advancing buy request failed")
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "failure"), nil)
	}

	e.sessions.Reset(sess.UserID)
	e.send(ctx, sess.UserID, i18n.T(sess.Lang, "payment_received"), nil)

	adminMsg := i18n.Tf("en", "admin_verify",
		req.RequestID.String(),
		pricing.Round(req.Amount).String(),
		pricing.Round(req.Total).String(),
		req.SellerID, req.BuyerID)
	e.send(ctx, e.adminID, adminMsg, chat.Row(
		chat.Button{Label: "Approve", Data: approval.ActionApproveRequest + ":" + req.RequestID.String()},
		chat.Button{Label: "Reject", Data: approval.ActionRejectRequest + ":" + req.RequestID.String()},
	))
	return nil
}

func (e *Engine) handleRegEnterName(ctx context.Context, sess session.Session, ev chat.Event) error {
	name := strings.TrimSpace(ev.Payload)
	if ev.Kind != chat.KindText || name == "" {
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_name"), nil)
	}
	e.sessions.Update(sess.UserID, func(s *session.Session) {
		s.Draft.Name = name
		s.Step = session.StepRegEnterContact
	})
	return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_contact"), nil)
}

func (e *Engine) handleRegEnterContact(ctx context.Context, sess session.Session, ev chat.Event) error {
	contact := strings.TrimSpace(ev.Payload)
	if ev.Kind != chat.KindText || contact == "" {
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_contact"), nil)
	}
	e.sessions.Update(sess.UserID, func(s *session.Session) {
		s.Draft.Contact = contact
		s.Step = session.StepRegEnterPayout
	})
	return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_payout_account"), nil)
}

func (e *Engine) handleRegEnterPayout(ctx context.Context, sess session.Session, ev chat.Event) error {
	account := strings.TrimSpace(ev.Payload)
	if ev.Kind != chat.KindText || account == "" {
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_payout_account"), nil)
	}

	profile := &seller.Profile{
		SellerID:      sess.UserID,
		Name:          sess.Draft.Name,
		Contact:       sess.Draft.Contact,
		PayoutAccount: account,
		Lang:          sess.Lang,
	}
	err := e.ledger.RegisterSeller(ctx, profile)
	if errors.Is(err, seller.ErrDuplicateRegistration) {
		e.sessions.Reset(sess.UserID)
		e.send(ctx, sess.UserID, i18n.T(sess.Lang, "seller_duplicate"), nil)
		return e.sendMainMenu(ctx, sess.UserID, sess.Lang)
	}
	if err != nil {
		e.logger.Error().Err(err).Int64("user", sess.UserID).Msg("seller registration failed")
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "failure"), nil)
	}

	e.sessions.Reset(sess.UserID)
	e.send(ctx, sess.UserID, i18n.T(sess.Lang, "seller_submitted"), nil)

	sellerRef := strconv.FormatInt(sess.UserID, 10)
	adminMsg := i18n.Tf("en", "admin_new_seller", profile.Name, profile.Contact, profile.PayoutAccount)
	e.send(ctx, e.adminID, adminMsg, chat.Row(
		chat.Button{Label: "Approve", Data: approval.ActionApproveSeller + ":" + sellerRef},
		chat.Button{Label: "Reject", Data: approval.ActionRejectSeller + ":" + sellerRef},
	))
	return nil
}

func (e *Engine) handleOrderEnterAmount(ctx context.Context, sess session.Session, ev chat.Event) error {
	amount, ok := parsePositiveDecimal(ev)
	if !ok {
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "invalid_amount"), nil)
	}
	e.sessions.Update(sess.UserID, func(s *session.Session) {
		s.Draft.Amount = amount
		s.Step = session.StepOrderEnterRate
	})
	return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_rate"), nil)
}

func (e *Engine) handleOrderEnterRate(ctx context.Context, sess session.Session, ev chat.Event) error {
	rate, ok := parsePositiveDecimal(ev)
	if !ok {
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "invalid_amount"), nil)
	}
	e.sessions.Update(sess.UserID, func(s *session.Session) {
		s.Draft.Rate = rate
		s.Step = session.StepOrderEnterCommissionType
	})
	return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "choose_commission"), chat.Row(
		chat.Button{Label: i18n.T(sess.Lang, "commission_percent"), Data: cbCTypePrefix + "percent"},
		chat.Button{Label: i18n.T(sess.Lang, "commission_fixed"), Data: cbCTypePrefix + "fixed"},
	))
}

func (e *Engine) handleOrderEnterCommissionType(ctx context.Context, sess session.Session, ev chat.Event) error {
	if ev.Kind == chat.KindButton {
		var ctype string
		switch ev.Payload {
		case cbCTypePrefix + "percent":
			ctype = string(order.CommissionPercent)
		case cbCTypePrefix + "fixed":
			ctype = string(order.CommissionFixed)
		}
		if ctype != "" {
			e.sessions.Update(sess.UserID, func(s *session.Session) {
				s.Draft.CommissionType = ctype
				s.Step = session.StepOrderEnterCommissionValue
			})
			return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_commission_value"), nil)
		}
	}
	return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "choose_commission"), chat.Row(
		chat.Button{Label: i18n.T(sess.Lang, "commission_percent"), Data: cbCTypePrefix + "percent"},
		chat.Button{Label: i18n.T(sess.Lang, "commission_fixed"), Data: cbCTypePrefix + "fixed"},
	))
}

func (e *Engine) handleOrderEnterCommissionValue(ctx context.Context, sess session.Session, ev chat.Event) error {
	value, ok := parsePositiveDecimal(ev)
	if !ok {
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "invalid_amount"), nil)
	}
	e.sessions.Update(sess.UserID, func(s *session.Session) {
		s.Draft.CommissionValue = value
		s.Step = session.StepOrderEnterPayout
	})
	return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_order_payout"), nil)
}

func (e *Engine) handleOrderEnterPayout(ctx context.Context, sess session.Session, ev chat.Event) error {
	account := strings.TrimSpace(ev.Payload)
	if ev.Kind != chat.KindText || account == "" {
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "enter_order_payout"), nil)
	}

	o := &order.Order{
		SellerID:        sess.UserID,
		PublishedAmount: sess.Draft.Amount,
		Rate:            sess.Draft.Rate,
		Commission: order.CommissionPolicy{
			Type:  order.CommissionType(sess.Draft.CommissionType),
			Value: sess.Draft.CommissionValue,
		},
		PayoutAccount: account,
	}
	displaced, err := e.ledger.PublishOrder(ctx, o)
	if errors.Is(err, seller.ErrNotApproved) {
		e.sessions.Reset(sess.UserID)
		e.send(ctx, sess.UserID, i18n.T(sess.Lang, "seller_not_approved"), nil)
		return e.sendMainMenu(ctx, sess.UserID, sess.Lang)
	}
	if err != nil {
		e.logger.Error().Err(err).Int64("user", sess.UserID).Msg("order publication failed")
		return e.send(ctx, sess.UserID, i18n.T(sess.Lang, "failure"), nil)
	}
	e.coordinator.NotifyDisplaced(ctx, displaced)

	e.sessions.Reset(sess.UserID)
	e.send(ctx, sess.UserID, i18n.T(sess.Lang, "order_created"), nil)
	return e.sendMainMenu(ctx, sess.UserID, sess.Lang)
}

// activeOrder returns the seller's order only if it is currently listable.
func (e *Engine) activeOrder(sellerID int64) *order.Order {
	o := e.ledger.GetOrder(sellerID)
	if o == nil || !o.AmountAvailable.IsPositive() {
		return nil
	}
	p := e.ledger.GetSeller(sellerID)
	if p == nil || !p.Approved {
		return nil
	}
	return o
}

func (e *Engine) sendLanguagePrompt(ctx context.Context, userID int64) error {
	buttons := make([]chat.Button, 0, len(i18n.Languages))
	for _, lang := range i18n.Languages {
		buttons = append(buttons, chat.Button{Label: lang.Label, Data: cbLangPrefix + lang.Code})
	}
	return e.send(ctx, userID, i18n.T("en", "welcome"), chat.Row(buttons...))
}

func (e *Engine) sendMainMenu(ctx context.Context, userID int64, lang string) error {
	keyboard := chat.Keyboard{
		{chat.Button{Label: i18n.T(lang, "menu_buy"), Data: cbMenuBuy}},
		{chat.Button{Label: i18n.T(lang, "menu_register_seller"), Data: cbMenuReg}},
		{chat.Button{Label: i18n.T(lang, "menu_create_order"), Data: cbMenuOrder}},
		{chat.Button{Label: i18n.T(lang, "menu_contact_admin"), Data: cbMenuContact}},
	}
	return e.send(ctx, userID, i18n.T(lang, "menu"), keyboard)
}

func (e *Engine) sendOrderListing(ctx context.Context, userID int64, lang string, active []*order.Order) error {
	keyboard := make(chat.Keyboard, 0, len(active))
	for _, o := range active {
		name := strconv.FormatInt(o.SellerID, 10)
		if p := e.ledger.GetSeller(o.SellerID); p != nil {
			name = p.Name
		}
		label := i18n.Tf(lang, "order_listing", name, pricing.Round(o.AmountAvailable).String(), o.Rate.String())
		keyboard = append(keyboard, []chat.Button{{Label: label, Data: cbOrderPrefix + strconv.FormatInt(o.SellerID, 10)}})
	}
	return e.send(ctx, userID, i18n.T(lang, "choose_order"), keyboard)
}

func (e *Engine) send(ctx context.Context, userID int64, text string, keyboard chat.Keyboard) error {
	if err := e.gateway.Send(ctx, userID, text, keyboard); err != nil {
		e.logger.Warn().Err(err).Int64("user", userID).Msg("send failed")
		return err
	}
	return nil
}

func (e *Engine) userLock(userID int64) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	lock, ok := e.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.userLocks[userID] = lock
	}
	return lock
}

func parsePositiveDecimal(ev chat.Event) (decimal.Decimal, bool) {
	if ev.Kind != chat.KindText {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(strings.TrimSpace(ev.Payload))
	if err != nil || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v, true
}

func isCancel(ev chat.Event) bool {
	switch ev.Kind {
	case chat.KindText:
		return strings.EqualFold(strings.TrimSpace(ev.Payload), cancelCommand)
	case chat.KindButton:
		return ev.Payload == cbCancel
	default:
		return false
	}
}
