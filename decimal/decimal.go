package decimal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Amounts travel as major unit decimals and are stored as minor units
const MinorDigits = 2

var (
	ErrInvalid    = errors.New("invalid decimal")
	ErrNegative   = errors.New("negative amount")
	ErrTooPrecise = fmt.Errorf("amount has more than %d decimal places", MinorDigits)
	ErrOverflow   = errors.New("amount out of range")
)

var MinorUnit = big.NewInt(0).Exp(big.NewInt(10), big.NewInt(MinorDigits), nil)

type Decimal struct {
	Value *big.Rat
}

func (d *Decimal) FromUint64(v uint64) {
	d.Value = big.NewRat(0, 1).SetFrac(big.NewInt(0).SetUint64(v), MinorUnit)
}

// ToUint64 returns the amount in minor units
func (d *Decimal) ToUint64() (v uint64, err error) {
	if d.Value == nil {
		return 0, nil
	}
	if d.Value.Sign() < 0 {
		return 0, ErrNegative
	}

	scaled := big.NewRat(0, 1).Mul(d.Value, big.NewRat(0, 1).SetInt(MinorUnit))
	if !scaled.IsInt() {
		return 0, ErrTooPrecise
	}
	if !scaled.Num().IsUint64() {
		return 0, ErrOverflow
	}
	return scaled.Num().Uint64(), nil
}

func (d *Decimal) FromString(s string) (err error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "/eE") {
		return fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	value, ok := big.NewRat(0, 1).SetString(s)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	d.Value = value
	return nil
}

func (d Decimal) String() (s string) {
	if d.Value == nil {
		return big.NewRat(0, 1).FloatString(MinorDigits)
	}
	return d.Value.FloatString(MinorDigits)
}

var (
	_ json.Unmarshaler = (*Decimal)(nil)
	_ json.Marshaler   = (*Decimal)(nil)
)

// UnmarshalJSON accepts both "12.50" and 12.50
func (d *Decimal) UnmarshalJSON(b []byte) (err error) {
	var asString string
	err = json.Unmarshal(b, &asString)
	if err != nil {
		var asNumber json.Number
		err = json.Unmarshal(b, &asNumber)
		if err != nil {
			return err
		}
		asString = asNumber.String()
	}

	return d.FromString(asString)
}

func (d *Decimal) MarshalJSON() (b []byte, err error) {
	return []byte("\"" + d.String() + "\""), nil
}
