// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and unit representations.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

var (
	hundred     = decimal.NewFromInt(100)
	maxSafeUnit = decimal.NewFromInt((1<<63 - 1) / 100)
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount converts a decimal string to Money with half-up rounding to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents, zero and values that overflow int64 cents are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "+-eE") {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.GreaterThan(maxSafeUnit) {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0).IntPart()
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// Units returns the amount in major units for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount with two decimals, e.g. "12.30".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// MarshalJSON renders money as its cents integer.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Cents)
}

// UnmarshalJSON accepts either an integer amount of cents or a decimal string ("9.99").
func (m *Money) UnmarshalJSON(b []byte) error {
	var cents int64
	if err := json.Unmarshal(b, &cents); err == nil {
		m.Cents = cents
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidAmount
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
