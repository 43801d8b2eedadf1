package tank01

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fortuna/pickem/internal/store"
)

// Upstream fields arrive as JSON numbers or numeric strings, with a few
// sentinel tokens. These types normalize them while decoding.

// scalar returns the raw token as text. ok is false for null and blank strings.
func scalar(b []byte) (string, bool, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return "", false, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false, err
		}
		s = strings.TrimSpace(s)
		return s, s != "", nil
	}
	if b[0] == '{' || b[0] == '[' || b[0] == 't' || b[0] == 'f' {
		return "", false, fmt.Errorf("unexpected JSON value %s", b)
	}
	return string(b), true, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimPrefix(s, "+"))
}

// spreadValue is a point spread. "PK" (pick'em) reads as 0.
type spreadValue struct {
	Value decimal.Decimal
	Valid bool
}

func (v *spreadValue) UnmarshalJSON(b []byte) error {
	s, ok, err := scalar(b)
	if err != nil || !ok {
		return err
	}
	if strings.EqualFold(s, "PK") {
		*v = spreadValue{Value: decimal.Zero, Valid: true}
		return nil
	}
	d, err := parseDecimal(s)
	if err != nil {
		return fmt.Errorf("invalid spread %q", s)
	}
	*v = spreadValue{Value: d, Valid: true}
	return nil
}

// totalValue is an over/under points line
type totalValue struct {
	Value decimal.Decimal
	Valid bool
}

func (v *totalValue) UnmarshalJSON(b []byte) error {
	s, ok, err := scalar(b)
	if err != nil || !ok {
		return err
	}
	d, err := parseDecimal(s)
	if err != nil {
		return fmt.Errorf("invalid total %q", s)
	}
	*v = totalValue{Value: d, Valid: true}
	return nil
}

// priceValue is an American odds price. "even" reads as +100.
type priceValue struct {
	Value int
	Valid bool
}

func (v *priceValue) UnmarshalJSON(b []byte) error {
	s, ok, err := scalar(b)
	if err != nil || !ok {
		return err
	}
	if strings.EqualFold(s, "even") {
		*v = priceValue{Value: 100, Valid: true}
		return nil
	}
	d, err := parseDecimal(s)
	if err != nil || !d.IsInteger() || d.IsZero() {
		return fmt.Errorf("invalid American odds %q", s)
	}
	*v = priceValue{Value: int(d.IntPart()), Valid: true}
	return nil
}

// pointsValue is a team score. A blank string means no points yet.
type pointsValue struct {
	Value int
	Valid bool
}

func (v *pointsValue) UnmarshalJSON(b []byte) error {
	s, ok, err := scalar(b)
	if err != nil {
		return err
	}
	if !ok {
		if b = bytes.TrimSpace(b); len(b) > 0 && b[0] == '"' {
			*v = pointsValue{Value: 0, Valid: true}
		}
		return nil
	}
	d, err := parseDecimal(s)
	if err != nil || !d.IsInteger() || d.IsNegative() {
		return fmt.Errorf("invalid points %q", s)
	}
	*v = pointsValue{Value: int(d.IntPart()), Valid: true}
	return nil
}

// epochValue is a kickoff time in (possibly fractional) unix seconds.
// Blank, missing or zero values mean the date is unknown.
type epochValue struct {
	Time  time.Time
	Valid bool
}

func (v *epochValue) UnmarshalJSON(b []byte) error {
	s, ok, err := scalar(b)
	if err != nil || !ok {
		return err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return fmt.Errorf("invalid epoch %q", s)
	}
	if f == 0 {
		return nil
	}
	sec, frac := math.Modf(f)
	*v = epochValue{Time: time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), Valid: true}
	return nil
}

// statusCode is the upstream game state code
type statusCode string

var statusCodes = map[statusCode]store.GameStatus{
	"0": store.GameStatusNotStarted,
	"1": store.GameStatusInProgress,
	"2": store.GameStatusCompleted,
	"3": store.GameStatusPostponed,
	"4": store.GameStatusSuspended,
}

func (c *statusCode) UnmarshalJSON(b []byte) error {
	s, _, err := scalar(b)
	if err != nil {
		return err
	}
	*c = statusCode(s)
	return nil
}

// GameStatus maps the code to a game status. Unknown codes read as
// not-started so bad data can never make a game gradeable.
func (c statusCode) GameStatus() store.GameStatus {
	if s, ok := statusCodes[c]; ok {
		return s
	}
	return store.GameStatusNotStarted
}

// Teams is the fixed set of abbreviations the provider uses
var Teams = map[string]bool{
	"ARI": true, "ATL": true, "BAL": true, "BUF": true, "CAR": true, "CHI": true,
	"CIN": true, "CLE": true, "DAL": true, "DEN": true, "DET": true, "GB": true,
	"HOU": true, "IND": true, "JAX": true, "KC": true, "LAC": true, "LAR": true,
	"LV": true, "MIA": true, "MIN": true, "NE": true, "NO": true, "NYG": true,
	"NYJ": true, "PHI": true, "PIT": true, "SEA": true, "SF": true, "TB": true,
	"TEN": true, "WSH": true,
}
