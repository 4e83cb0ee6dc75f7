// Package topupservice manages business logic layer of payment provider top-ups.
package topupservice

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/ledgerservice"
	"github.com/rs/zerolog"
)

// Service facilitates top-up service layer logic.
type Service struct {
	ledger *ledgerservice.Service
	secret []byte
}

// New returns top-up service struct verifying callbacks signed with secret.
func New(ledger *ledgerservice.Service, secret string) *Service {
	return &Service{
		ledger: ledger,
		secret: []byte(secret),
	}
}

// Sign returns the hex encoded HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the callback signature of body.
func (s *Service) Verify(body []byte, signature string) error {
	if len(s.secret) == 0 {
		return domain.ErrInvalidSignature
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)

	if !hmac.Equal(got, mac.Sum(nil)) {
		return domain.ErrInvalidSignature
	}

	return nil
}

// Callback credits the wallet named by a signed provider callback.
//
// Each provider token credits once; a repeated callback returns the recorded credit.
// The owner's account in the currency is opened when missing.
func (s *Service) Callback(ctx context.Context, body []byte, signature string) (domain.EntryResult, error) {
	l := zerolog.Ctx(ctx)

	if err := s.Verify(body, signature); err != nil {
		l.Warn().Int("body_size", len(body)).Msg("top-up callback with invalid signature")
		return domain.EntryResult{}, err
	}

	var p domain.TopupParams
	if err := json.Unmarshal(body, &p); err != nil {
		l.Info().Err(err).Msg("top-up callback payload")
		return domain.EntryResult{}, domain.ErrInvalidTopup
	}

	if _, err := p.Validate(); err != nil {
		l.Info().Err(err).Str("provider", p.Provider).Send()
		return domain.EntryResult{}, err
	}

	account, err := s.walletAccount(ctx, p.Owner, p.WalletCurrency())
	if err != nil {
		return domain.EntryResult{}, err
	}

	res, err := s.ledger.Credit(ctx, domain.CreditParams{
		AccountID:   account.ID,
		Amount:      p.Amount,
		Currency:    account.Currency,
		Reference:   p.Reference(),
		Description: p.Description(),
	})
	if err != nil {
		return res, err
	}

	l.Info().
		Str("provider", p.Provider).
		Int64("account_id", account.ID).
		Str("amount", res.Entry.Amount.String()).
		Bool("replayed", res.Replayed).
		Msg("top-up credited")

	return res, nil
}

// walletAccount returns the owner's account in the currency, opening it when missing.
func (s *Service) walletAccount(ctx context.Context, owner, currency string) (domain.Account, error) {
	find := func() (domain.Account, bool, error) {
		accounts, err := s.ledger.ListAccounts(ctx, owner)
		if err != nil {
			return domain.Account{}, false, err
		}

		for _, a := range accounts {
			if a.Currency == currency {
				return a, true, nil
			}
		}

		return domain.Account{}, false, nil
	}

	a, ok, err := find()
	if err != nil || ok {
		return a, err
	}

	a, err = s.ledger.OpenAccount(ctx, owner, currency)
	if errors.Is(err, domain.ErrCurrencyAlreadyExists) {
		// Opened by a concurrent callback.
		if a, ok, err = find(); err == nil && !ok {
			err = domain.ErrAccountNotFound
		}
	}

	return a, err
}
