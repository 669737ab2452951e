package rewardboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Amount is an arbitrary precision integer as served by the rewards backend.
// The zero value is zero. Amounts are never mutated after construction, so
// copies may share the underlying big.Int.
type Amount struct {
	v *big.Int
}

// NewAmount wraps an int64.
func NewAmount(x int64) Amount {
	return Amount{v: big.NewInt(x)}
}

// AmountFromBig wraps a copy of x.
func AmountFromBig(x *big.Int) Amount {
	if x == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Set(x)}
}

// maxAmountBits bounds decoded amounts. Token quantities and 30-decimal
// prices stay far below it.
const maxAmountBits = 512

// ParseAmount accepts base-10 integers, 0x-prefixed hex and decimal or
// exponent notation. Fractional parts are truncated toward zero. Values
// wider than maxAmountBits and infinities are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return Amount{}, fmt.Errorf("invalid hex amount %q", s)
		}
		return boundedAmount(s, v)
	}
	if v, ok := new(big.Int).SetString(s, 10); ok {
		return boundedAmount(s, v)
	}
	f, _, err := big.ParseFloat(s, 10, 256, big.ToZero)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if f.IsInf() {
		return Amount{}, fmt.Errorf("invalid amount %q: infinite", s)
	}
	// |f| < 2^exp, so exp bounds the bit length of the integer part.
	if exp := f.MantExp(nil); exp > maxAmountBits {
		return Amount{}, fmt.Errorf("amount %q exceeds %d bits", s, maxAmountBits)
	}
	v, _ := f.Int(nil)
	return Amount{v: v}, nil
}

func boundedAmount(s string, v *big.Int) (Amount, error) {
	if v.BitLen() > maxAmountBits {
		return Amount{}, fmt.Errorf("amount %.32q exceeds %d bits", s, maxAmountBits)
	}
	return Amount{v: v}, nil
}

// Int returns a copy of the value; never nil.
func (a Amount) Int() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.Int(), b.Int())}
}

// Cmp compares a and b like big.Int.Cmp.
func (a Amount) Cmp(b Amount) int {
	return a.Int().Cmp(b.Int())
}

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int {
	if a.v == nil {
		return 0
	}
	return a.v.Sign()
}

func (a Amount) String() string {
	if a.v == nil {
		return "0"
	}
	return a.v.String()
}

// MarshalJSON emits the value as a decimal string so clients never lose precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts JSON numbers, strings and serialized BigNumber objects
// of the form {"type":"BigNumber","hex":"0x..."}.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}

	var raw string
	switch data[0] {
	case '"':
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode amount: %w", err)
		}
	case '{':
		var obj struct {
			Hex string `json:"hex"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("decode amount object: %w", err)
		}
		if obj.Hex == "" {
			return fmt.Errorf("amount object missing hex field")
		}
		raw = obj.Hex
	default:
		raw = string(data)
	}

	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
