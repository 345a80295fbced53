package signals

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/marcusklein/windowtrader/backend/models"
)

// ErrInvalidSignal wraps any failure to parse or validate an inbound
// payload, per spec.md §7's InvalidSignal taxonomy entry: returned to the
// caller, no state change.
type ErrInvalidSignal struct {
	Reason string
}

func (e *ErrInvalidSignal) Error() string {
	return fmt.Sprintf("signals: invalid signal: %s", e.Reason)
}

var validate = validator.New()

var (
	symToken     = regexp.MustCompile(`(?i)sym=([^\s,]+)`)
	stopPxToken  = regexp.MustCompile(`(?i)stopPx=([0-9]*\.?[0-9]+)`)
	buyTokens    = regexp.MustCompile(`(?i)\b(BUY|ACCEPTED ENTRY)\b`)
	sellTokens   = regexp.MustCompile(`(?i)\b(SELL|ACCEPTED EXIT)\b`)
)

// ParseFreeText parses the free-text webhook payload shape of spec.md
// §6.1: a side token (BUY/SELL or the "Accepted Entry"/"Accepted Exit"
// aliases), an optional sym=<…> token, and an optional stopPx=<number>
// seed price.
func ParseFreeText(raw string) (models.Signal, error) {
	var sig models.Signal

	symMatch := symToken.FindStringSubmatch(raw)
	if symMatch == nil {
		return sig, &ErrInvalidSignal{Reason: "missing sym= token"}
	}
	sig.Symbol = symMatch[1]

	switch {
	case buyTokens.MatchString(raw):
		sig.Side = models.SignalSideBuy
	case sellTokens.MatchString(raw):
		sig.Side = models.SignalSideSell
	default:
		return sig, &ErrInvalidSignal{Reason: "no BUY/SELL (or Accepted Entry/Exit) token found"}
	}

	if m := stopPxToken.FindStringSubmatch(raw); m != nil {
		price, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return sig, &ErrInvalidSignal{Reason: "unparseable stopPx value"}
		}
		sig.AtPrice = price
	}

	sig.Timestamp = time.Now()
	sig.Reason = raw

	if err := validateSignal(sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// ParseStructured parses the structured {sym, side, at_price?} JSON
// payload shape of spec.md §6.1, tag-validated via
// go-playground/validator rather than hand-rolled field checks.
func ParseStructured(data []byte) (models.Signal, error) {
	var sig models.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return sig, &ErrInvalidSignal{Reason: err.Error()}
	}
	if sig.Timestamp.IsZero() {
		sig.Timestamp = time.Now()
	}
	sig.Side = models.SignalSide(strings.ToUpper(string(sig.Side)))
	if err := validateSignal(sig); err != nil {
		return sig, err
	}
	return sig, nil
}

func validateSignal(sig models.Signal) error {
	if err := validate.Struct(sig); err != nil {
		return &ErrInvalidSignal{Reason: err.Error()}
	}
	return nil
}
