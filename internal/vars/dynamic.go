package vars

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	alphabetic    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alphanumeric  = alphabetic + "0123456789"
	hexadecimal   = "0123456789abcdef"
)

// ResolveDynamic evaluates a dynamic variable name such as "$uuid" or
// "$random.integer(1, 10)". It returns ok=false if name isn't a
// recognized dynamic variable at all, distinct from a recognized one
// that fails to parse its own arguments (which resolves to an error
// instead so the caller can warn with a precise message).
func ResolveDynamic(name string) (value any, ok bool, err error) {
	if !strings.HasPrefix(name, "$") {
		return nil, false, nil
	}

	switch {
	case name == "$uuid" || name == "$random.uuid":
		return uuid.New().String(), true, nil
	case name == "$timestamp":
		return time.Now().Unix(), true, nil
	case name == "$isoTimestamp":
		return time.Now().UTC().Format(time.RFC3339), true, nil
	case name == "$randomInt":
		n, err := randomInt(0, 1000)
		return n, true, err
	case name == "$random.integer":
		n, err := randomInt(0, 1000)
		return n, true, err
	case name == "$random.float":
		f, err := randomFloat(0, 1)
		return f, true, err
	}

	call, args, isCall := parseCall(name)
	if !isCall {
		return nil, false, nil
	}

	switch call {
	case "$random.integer":
		lo, hi, err := twoInts(args, 0, 1000)
		if err != nil {
			return nil, true, err
		}
		n, err := randomInt(lo, hi)
		return n, true, err
	case "$random.float":
		lo, hi, err := twoFloats(args, 0, 1)
		if err != nil {
			return nil, true, err
		}
		f, err := randomFloat(lo, hi)
		return f, true, err
	case "$random.alphabetic":
		n, err := oneInt(args, 8)
		if err != nil {
			return nil, true, err
		}
		s, err := randomString(n, alphabetic)
		return s, true, err
	case "$random.alphanumeric":
		n, err := oneInt(args, 8)
		if err != nil {
			return nil, true, err
		}
		s, err := randomString(n, alphanumeric)
		return s, true, err
	case "$random.hexadecimal":
		n, err := oneInt(args, 8)
		if err != nil {
			return nil, true, err
		}
		s, err := randomString(n, hexadecimal)
		return s, true, err
	case "$random.email":
		user, err := randomString(8, strings.ToLower(alphabetic))
		if err != nil {
			return nil, true, err
		}
		domain, err := randomString(6, strings.ToLower(alphabetic))
		if err != nil {
			return nil, true, err
		}
		return fmt.Sprintf("%s@%s.com", user, domain), true, nil
	}

	return nil, false, nil
}

func parseCall(name string) (call string, args []string, isCall bool) {
	open := strings.IndexByte(name, '(')
	if open < 0 || !strings.HasSuffix(name, ")") {
		return "", nil, false
	}
	call = name[:open]
	inner := strings.TrimSpace(name[open+1 : len(name)-1])
	if inner == "" {
		return call, nil, true
	}
	for _, part := range strings.Split(inner, ",") {
		args = append(args, strings.TrimSpace(part))
	}
	return call, args, true
}

func oneInt(args []string, def int) (int, error) {
	if len(args) < 1 {
		return def, nil
	}
	return strconv.Atoi(args[0])
}

func twoInts(args []string, defLo, defHi int) (int, int, error) {
	lo, hi := defLo, defHi
	var err error
	if len(args) >= 1 {
		lo, err = strconv.Atoi(args[0])
		if err != nil {
			return 0, 0, err
		}
	}
	if len(args) >= 2 {
		hi, err = strconv.Atoi(args[1])
		if err != nil {
			return 0, 0, err
		}
	}
	return lo, hi, nil
}

func twoFloats(args []string, defLo, defHi float64) (float64, float64, error) {
	lo, hi := defLo, defHi
	var err error
	if len(args) >= 1 {
		lo, err = strconv.ParseFloat(args[0], 64)
		if err != nil {
			return 0, 0, err
		}
	}
	if len(args) >= 2 {
		hi, err = strconv.ParseFloat(args[1], 64)
		if err != nil {
			return 0, 0, err
		}
	}
	return lo, hi, nil
}

func randomInt(lo, hi int) (int, error) {
	if hi < lo {
		return 0, fmt.Errorf("random.integer: lower bound %d is greater than upper bound %d", lo, hi)
	}
	span := int64(hi-lo) + 1
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}
	return lo + int(n.Int64()), nil
}

func randomFloat(lo, hi float64) (float64, error) {
	if hi < lo {
		lo, hi = hi, lo
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		return 0, err
	}
	frac := float64(n.Int64()) / float64(1<<53)
	return lo + frac*(hi-lo), nil
}

func randomString(n int, charset string) (string, error) {
	if n < 0 {
		n = 0
	}
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		out[i] = charset[idx.Int64()]
	}
	return string(out), nil
}
